package counter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// CountResponse is what the count API resolves with. Data is added to the
// counter value.
type CountResponse struct {
	Data int `json:"data"`
}

type Fetcher interface {
	FetchCount(ctx context.Context, amount int) (CountResponse, error)
}

type FetcherFunc func(ctx context.Context, amount int) (CountResponse, error)

func (f FetcherFunc) FetchCount(ctx context.Context, amount int) (CountResponse, error) {
	return f(ctx, amount)
}

var ErrFetchFailure = errors.New("fetch failure")

// FetchFailureError is returned by IncrementAsync when the fetcher fails.
type FetchFailureError struct {
	Amount int
	Err    error
}

func (e *FetchFailureError) Error() string {
	return fmt.Sprintf("fetch count %d: %v", e.Amount, e.Err)
}

func (e *FetchFailureError) Unwrap() error {
	return e.Err
}

func (e *FetchFailureError) Cause() error {
	return e.Err
}

func (e *FetchFailureError) Is(target error) bool {
	return target == ErrFetchFailure
}

func FetchFailure(amount int, err error) error {
	return &FetchFailureError{Amount: amount, Err: err}
}
