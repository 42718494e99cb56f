package we

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
)

type EntityService[T any] interface {
	Load(ctx context.Context, id AggregateId) (Entity[T], error)
	Execute(ctx context.Context, id AggregateId, command Command) (Entity[T], error)
}

// EntitySubscriber streams the snapshots of one aggregate.
type EntitySubscriber[T any] interface {
	Subscribe(ctx context.Context, id AggregateId, observer Observer[T]) (Entity[T], func(), error)
}

// StoreFactory creates the store for an aggregate the first time it is
// addressed.
type StoreFactory[T any] func(ctx context.Context, id AggregateId) (*Store[T], error)

type UnknownEntityError struct {
	Id AggregateId
}

func (e UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %s", e.Id)
}

func NewEntityService[T any](factory StoreFactory[T]) *StoreService[T] {
	return &StoreService[T]{
		factory: factory,
		stores:  make(map[AggregateId]*Store[T]),
	}
}

// StoreService keeps one store per aggregate for the life of the process.
type StoreService[T any] struct {
	factory StoreFactory[T]

	lk        sync.Mutex
	stores    map[AggregateId]*Store[T]
	observers []Observer[T]
}

func (s *StoreService[T]) Store(ctx context.Context, id AggregateId) (*Store[T], error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	if store, ok := s.stores[id]; ok {
		return store, nil
	}

	store, err := s.factory(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, observer := range s.observers {
		store.Subscribe(observer)
	}

	s.stores[id] = store
	return store, nil
}

func (s *StoreService[T]) Load(ctx context.Context, id AggregateId) (Entity[T], error) {
	store, err := s.Store(ctx, id)
	if err != nil {
		return Entity[T]{}, err
	}

	return store.State(), nil
}

func (s *StoreService[T]) Execute(ctx context.Context, id AggregateId, command Command) (Entity[T], error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "service execute command")
	defer span.End()

	store, err := s.Store(ctx, id)
	if err != nil {
		return Entity[T]{}, err
	}

	return store.Dispatch(ctx, command)
}

// Subscribe registers observer with the aggregate's store and returns the
// snapshot the observer's first notification follows.
func (s *StoreService[T]) Subscribe(ctx context.Context, id AggregateId, observer Observer[T]) (Entity[T], func(), error) {
	store, err := s.Store(ctx, id)
	if err != nil {
		return Entity[T]{}, nil, err
	}

	current, unsubscribe := store.SubscribeState(observer)
	return current, unsubscribe, nil
}

// Observe registers observer with every store, current and future.
func (s *StoreService[T]) Observe(observer Observer[T]) {
	s.lk.Lock()
	defer s.lk.Unlock()

	s.observers = append(s.observers, observer)
	for _, store := range s.stores {
		store.Subscribe(observer)
	}
}

func (s *StoreService[T]) Close() {
	s.lk.Lock()
	defer s.lk.Unlock()

	for id, store := range s.stores {
		store.Close()
		delete(s.stores, id)
	}
}
