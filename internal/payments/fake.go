package payments

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Processor for tests and local development. Orders
// get deterministic ids; signatures use the same HMAC scheme as the live
// processor.
type Fake struct {
	Secret string

	mu     sync.Mutex
	seq    int
	Orders []CreateOrderInput

	// FailCreate makes CreateOrder return an upstream error.
	FailCreate bool
}

func (f *Fake) CreateOrder(_ context.Context, in CreateOrderInput) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return Order{}, UpstreamError{Op: "create order", Err: fmt.Errorf("simulated outage")}
	}
	f.seq++
	f.Orders = append(f.Orders, in)
	return Order{
		OrderID:     fmt.Sprintf("order_fake_%04d", f.seq),
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Receipt:     in.Receipt,
	}, nil
}

func (f *Fake) VerifySignature(orderID, paymentID, signature string) bool {
	return verifyHMAC(f.Secret, orderID, paymentID, signature)
}
