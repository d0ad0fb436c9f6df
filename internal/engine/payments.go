package engine

import (
	"context"
	"fmt"

	"gighub/internal/domain"
	"gighub/internal/engine/policy"
	"gighub/internal/events"
	"gighub/internal/lifecycle"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

// PaymentOrder is what the client hands to the processor's checkout.
type PaymentOrder struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// CreateDepositOrder opens the first payment leg for an approved job.
// Half the price, rounded half up in minor units.
func (e Engine) CreateDepositOrder(ctx context.Context, actor policy.Actor, jobID string) (PaymentOrder, error) {
	return e.createOrder(ctx, actor, jobID, repo.LegDeposit)
}

// CreateFinalOrder opens the second leg once work has been submitted.
func (e Engine) CreateFinalOrder(ctx context.Context, actor policy.Actor, jobID string) (PaymentOrder, error) {
	return e.createOrder(ctx, actor, jobID, repo.LegFinal)
}

func (e Engine) createOrder(ctx context.Context, actor policy.Actor, jobID string, leg repo.PaymentLeg) (PaymentOrder, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return PaymentOrder{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	if err := policy.RequireClientOwner(actor, j); err != nil {
		return PaymentOrder{}, err
	}
	ev := lifecycle.EventDepositVerified
	if leg == repo.LegFinal {
		ev = lifecycle.EventFinalVerified
	}
	if !lifecycle.CanTransition(lifecycle.Status(j.Status), ev) {
		return PaymentOrder{}, ConflictError{Msg: fmt.Sprintf("job in status %s is not payable for the %s", j.Status, leg)}
	}

	order, err := e.Payments.CreateOrder(ctx, payments.CreateOrderInput{
		AmountMinor: payments.SplitAmount(j.PriceMinor),
		Currency:    e.Config.Payments.Currency,
		Receipt:     fmt.Sprintf("%s_%s", leg, j.ID),
		Notes: map[string]string{
			"jobId":       j.ID,
			"paymentType": string(leg),
			"clientId":    j.ClientID,
		},
	})
	if err != nil {
		return PaymentOrder{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PaymentOrder{}, err
	}
	defer tx.Rollback()
	j, err = e.Repo.GetJobTx(ctx, tx, jobID)
	if err != nil {
		return PaymentOrder{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	// The job may have advanced while the processor call was in flight.
	// Never attach an order to a job that is no longer payable.
	if !lifecycle.CanTransition(lifecycle.Status(j.Status), ev) {
		return PaymentOrder{}, ConflictError{Msg: fmt.Sprintf("job in status %s is not payable for the %s", j.Status, leg)}
	}
	if leg == repo.LegDeposit {
		j.DepositOrderID = strPtr(order.OrderID)
	} else {
		j.FinalOrderID = strPtr(order.OrderID)
	}
	j.UpdatedAt = e.now()
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return PaymentOrder{}, err
	}
	if err := e.Events.Append(ctx, tx, "payment.order_created", "job", j.ID, actor.ID, events.EventPayload{
		"order_id": order.OrderID,
		"leg":      string(leg),
		"amount":   order.AmountMinor,
	}); err != nil {
		return PaymentOrder{}, err
	}
	if err := tx.Commit(); err != nil {
		return PaymentOrder{}, err
	}
	return PaymentOrder{
		OrderID:     order.OrderID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		Receipt:     order.Receipt,
	}, nil
}

// VerifyPayment settles an order. The column the order id was stored in
// decides which leg it pays. Verifying an already-settled order is a
// no-op returning the job as it stands.
func (e Engine) VerifyPayment(ctx context.Context, actor policy.Actor, orderID, paymentID, signature string) (domain.Job, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return domain.Job{}, ValidationError{Msg: "orderId, paymentId and signature are required"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, leg, err := e.Repo.GetJobByOrderIDTx(ctx, tx, orderID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	if err := policy.RequireClientOwner(actor, j); err != nil {
		return domain.Job{}, err
	}
	if !e.Payments.VerifySignature(orderID, paymentID, signature) {
		return domain.Job{}, ValidationError{Msg: "invalid payment signature"}
	}

	// Idempotent per order: a settled leg stays settled.
	if (leg == repo.LegDeposit && j.DepositPaymentID != nil) ||
		(leg == repo.LegFinal && j.FinalPaymentID != nil) {
		return j, tx.Commit()
	}

	ev := lifecycle.EventDepositVerified
	if leg == repo.LegFinal {
		ev = lifecycle.EventFinalVerified
	}
	next, err := lifecycle.Next(lifecycle.Status(j.Status), ev)
	if err != nil {
		return domain.Job{}, err
	}

	now := e.now()
	j.Status = string(next)
	if leg == repo.LegDeposit {
		j.PaymentStatus = domain.PaymentStatusDepositPaid
		j.DepositPaymentID = strPtr(paymentID)
		j.DepositPaidAt = strPtr(now)
	} else {
		j.PaymentStatus = domain.PaymentStatusFullyPaid
		j.FinalPaymentID = strPtr(paymentID)
		j.FinalPaidAt = strPtr(now)
	}
	j.UpdatedAt = now
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "payment.verified", "job", j.ID, actor.ID, events.EventPayload{
		"order_id":   orderID,
		"payment_id": paymentID,
		"leg":        string(leg),
	}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}
