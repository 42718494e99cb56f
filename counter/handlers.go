package counter

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-counter-go/we"
)

func increment() we.CommandHandler[State] {
	var handler we.CommandHandlerFunction[State, Increment] = func(ctx context.Context, cmd Increment, state we.Entity[State], publish we.EventPublisher) error {
		_, err := publish(ctx, state.Aggregate, we.Options(), Incremented{})
		return err
	}

	return handler
}

func decrement() we.CommandHandler[State] {
	var handler we.CommandHandlerFunction[State, Decrement] = func(ctx context.Context, cmd Decrement, state we.Entity[State], publish we.EventPublisher) error {
		_, err := publish(ctx, state.Aggregate, we.Options(), Decremented{})
		return err
	}

	return handler
}

func incrementByAmount() we.CommandHandler[State] {
	var handler we.CommandHandlerFunction[State, IncrementByAmount] = func(ctx context.Context, cmd IncrementByAmount, state we.Entity[State], publish we.EventPublisher) error {
		_, err := publish(ctx, state.Aggregate, we.Options(), IncrementedByAmount{Amount: cmd.Amount})
		return err
	}

	return handler
}

// incrementIfOdd decides on the snapshot it was handed, so the increment is
// only recorded if nothing else was published since.
func incrementIfOdd() we.CommandHandler[State] {
	var handler we.CommandHandlerFunction[State, IncrementIfOdd] = func(ctx context.Context, cmd IncrementIfOdd, state we.Entity[State], publish we.EventPublisher) error {
		if !IsOdd(SelectCount(state.State)) {
			return nil
		}

		_, err := publish(
			ctx,
			state.Aggregate,
			we.Options(we.WithExpectedRevision(state.Revision)),
			IncrementedByAmount{Amount: cmd.Amount},
		)
		return err
	}

	return handler
}

// incrementAsync records the pending transition before calling out and
// always settles it, so a failed or cancelled fetch never leaves the counter
// loading.
func incrementAsync(api Fetcher) we.CommandHandler[State] {
	var handler we.CommandHandlerFunction[State, IncrementAsync] = func(ctx context.Context, cmd IncrementAsync, state we.Entity[State], publish we.EventPublisher) error {
		if _, err := publish(ctx, state.Aggregate, we.Options(), FetchCountPending{Amount: cmd.Amount}); err != nil {
			return err
		}

		settled := context.WithoutCancel(ctx)

		response, err := api.FetchCount(ctx, cmd.Amount)
		if err != nil {
			failure := FetchFailure(cmd.Amount, err)

			rejected := FetchCountRejected{Amount: cmd.Amount, Reason: err.Error()}
			if _, perr := publish(settled, state.Aggregate, we.Options(), rejected); perr != nil {
				log.Error().Err(perr).Str("aggregate", state.Aggregate.String()).Msg("failed to record rejected fetch")
			}

			return failure
		}

		_, err = publish(settled, state.Aggregate, we.Options(), FetchCountFulfilled{Amount: cmd.Amount, Delta: response.Data})
		return err
	}

	return handler
}
