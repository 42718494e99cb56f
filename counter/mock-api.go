package counter

import (
	"context"
	"time"
)

const DefaultMockDelay = 500 * time.Millisecond

// MockAPI resolves every fetch with the requested amount after Delay.
type MockAPI struct {
	Delay time.Duration
}

func (api MockAPI) FetchCount(ctx context.Context, amount int) (CountResponse, error) {
	delay := api.Delay
	if delay == 0 {
		delay = DefaultMockDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return CountResponse{Data: amount}, nil
	case <-ctx.Done():
		return CountResponse{}, ctx.Err()
	}
}
