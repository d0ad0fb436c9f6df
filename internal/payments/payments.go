// Package payments talks to the payment processor. The processor splits a
// job's price into a deposit and a final order.
package payments

import "context"

type CreateOrderInput struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Receipt     string
}

// Processor creates orders and verifies settlement signatures. Engines
// receive a Processor; nothing holds a package-level instance.
type Processor interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// UpstreamError wraps a processor-side failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e UpstreamError) Error() string {
	return "payment processor: " + e.Op + ": " + e.Err.Error()
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}

// SplitAmount returns one leg of the 50/50 split, rounding half up in
// minor units. Deposit and final use the same figure, so for odd prices
// the two legs exceed the price by exactly one minor unit.
func SplitAmount(priceMinor int64) int64 {
	return (priceMinor + 1) / 2
}
