package we

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

type Renderer[T any] struct {
	Reducers Reducers[T]
}

// Apply folds events into state. Events without a reducer are skipped.
func (r *Renderer[T]) Apply(state T, events ...RecordedEvent) (T, error) {
	for i := range events {
		event := &events[i]

		reducer := r.Reducers[event.EventType]
		if reducer == nil {
			continue
		}

		next, err := reducer.Reduce(state, event)
		if err != nil {
			return state, errors.Wrap(err, fmt.Sprintf("failed to process update with %s", event.EventType))
		}

		state = next
	}

	return state, nil
}

func (r *Renderer[T]) Render(ctx context.Context, initial T, aggregate Aggregate) (Entity[T], error) {
	_, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("render %s", EntityTypeOf(initial)))
	defer span.End()

	state, err := r.Apply(initial, aggregate.Events...)
	if err != nil {
		return Entity[T]{}, err
	}

	return Entity[T]{
		Aggregate: aggregate.Id,
		Revision:  aggregate.Revision,
		Type:      EntityTypeOf(state),
		State:     state,
	}, nil
}
