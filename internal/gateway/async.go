package gateway

import (
	"context"
	"fmt"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
)

// Outcome is the settled value of an asynchronous charge.
type Outcome struct {
	Result *Result
	Err    error
}

// Async starts the charge in its own goroutine and returns a channel that
// yields exactly one Outcome. A panicking creator settles as a transport failure.
func Async(ctx context.Context, creator ChargeCreator, product catalog.Product, requesterID int64) <-chan Outcome {
	out := make(chan Outcome, 1)

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Outcome{Err: &FailureError{Kind: KindTransport, Err: fmt.Errorf("charge panicked: %v", r)}}
			}
		}()

		result, err := creator.CreateCharge(ctx, product, requesterID)
		out <- Outcome{Result: result, Err: err}
	}()

	return out
}
