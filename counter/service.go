package counter

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/weegigs/wee-counter-go/stores/memory"
	"github.com/weegigs/wee-counter-go/we"
)

func Descriptor(api Fetcher) we.ServiceDescriptor[State] {
	return DescriptorWithState(InitialState(), api)
}

// DescriptorWithState describes a counter that starts from initial instead of
// {0, idle}.
func DescriptorWithState(initial State, api Fetcher) we.ServiceDescriptor[State] {
	initial.Status = statusOf(initial.Outstanding)

	handlers := map[we.CommandName]func() we.CommandHandler[State]{
		we.CommandNameOf(Increment{}):         increment,
		we.CommandNameOf(Decrement{}):         decrement,
		we.CommandNameOf(IncrementByAmount{}): incrementByAmount,
		we.CommandNameOf(IncrementIfOdd{}):    incrementIfOdd,
	}

	handlers[we.CommandNameOf(IncrementAsync{})] = func() we.CommandHandler[State] { return incrementAsync(api) }

	return we.ServiceDescriptor[State]{
		Initial:  initial,
		Handlers: handlers,
		Reducers: Reducers(),
	}
}

// Store is a counter slice. It starts at {0, idle} and journals every
// transition to its event store.
type Store struct {
	*we.Store[State]
}

// NewStore creates a counter store. A nil events journals to memory.
func NewStore(api Fetcher, events we.EventStore, options ...we.StoreOption) *Store {
	return NewStoreWithState(InitialState(), api, events, options...)
}

func NewStoreWithState(initial State, api Fetcher, events we.EventStore, options ...we.StoreOption) *Store {
	if events == nil {
		events = memory.NewEventStore()
	}

	return &Store{Store: we.NewStore(DescriptorWithState(initial, api), events, options...)}
}

func (s *Store) Do(ctx context.Context, action Action) (we.Entity[State], error) {
	return s.Dispatch(ctx, action)
}

func (s *Store) Increment(ctx context.Context) (we.Entity[State], error) {
	return s.Dispatch(ctx, Increment{})
}

func (s *Store) Decrement(ctx context.Context) (we.Entity[State], error) {
	return s.Dispatch(ctx, Decrement{})
}

func (s *Store) IncrementByAmount(ctx context.Context, amount int) (we.Entity[State], error) {
	return s.Dispatch(ctx, IncrementByAmount{Amount: amount})
}

// IncrementAsync returns once the counter is loading. The future resolves
// when the fetch has settled.
func (s *Store) IncrementAsync(ctx context.Context, amount int) *we.Future[State] {
	return s.DispatchAsync(ctx, IncrementAsync{Amount: amount})
}

func (s *Store) IncrementIfOdd(ctx context.Context, amount int) (we.Entity[State], error) {
	return s.Dispatch(ctx, IncrementIfOdd{Amount: amount})
}

func (s *Store) Count() int {
	return we.Select[State, int](s, SelectCount)
}

// Factory creates one counter store per aggregate id of type "counter".
// Journal keys are suffixed with a per-factory session id, so a restarted
// process never picks up an earlier journal.
func Factory(api Fetcher, events we.EventStore, options ...we.StoreOption) we.StoreFactory[State] {
	if events == nil {
		events = memory.NewEventStore()
	}

	session := ulid.Make().String()

	return func(ctx context.Context, id we.AggregateId) (*we.Store[State], error) {
		if we.EntityType(id.Type) != EntityType {
			return nil, we.UnknownEntityError{Id: id}
		}

		journal := we.AggregateId{Type: id.Type, Key: id.Key + "." + session}
		opts := append([]we.StoreOption{we.WithAggregateId(journal)}, options...)
		return we.NewStore(Descriptor(api), events, opts...), nil
	}
}
