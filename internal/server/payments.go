package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gighub/internal/engine"
)

type orderBody struct {
	Success bool     `json:"success"`
	Data    orderDTO `json:"data"`
}

type jobIDBody struct {
	Body struct {
		JobID string `json:"jobId"`
	}
}

func registerPayments(api huma.API, base string, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-deposit-order",
		Method:      http.MethodPost,
		Path:        base + "/payments/deposit-order",
		Summary:     "Open the deposit payment leg",
	}, func(ctx context.Context, input *jobIDBody) (*struct{ Body orderBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		order, err := e.CreateDepositOrder(ctx, actor, input.Body.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body orderBody }{Body: orderBody{Success: true, Data: orderResponse(order)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-final-order",
		Method:      http.MethodPost,
		Path:        base + "/payments/final-order",
		Summary:     "Open the final payment leg",
	}, func(ctx context.Context, input *jobIDBody) (*struct{ Body orderBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		order, err := e.CreateFinalOrder(ctx, actor, input.Body.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body orderBody }{Body: orderBody{Success: true, Data: orderResponse(order)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-payment",
		Method:      http.MethodPost,
		Path:        base + "/payments/verify",
		Summary:     "Settle an order with the processor's signature",
	}, func(ctx context.Context, input *struct {
		Body struct {
			OrderID   string `json:"orderId"`
			PaymentID string `json:"paymentId"`
			Signature string `json:"signature"`
		}
	}) (*struct{ Body jobBody }, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		j, err := e.VerifyPayment(ctx, actor, input.Body.OrderID, input.Body.PaymentID, input.Body.Signature)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body jobBody }{Body: jobBody{Success: true, Data: jobResponse(j)}}, nil
	})
}
