package we

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

var ErrStoreClosed = errors.New("store closed")

const defaultConflictAttempts = 5

type UnexpectedAggregateError struct {
	Expected AggregateId
	Actual   AggregateId
}

func (e UnexpectedAggregateError) Error() string {
	return fmt.Sprintf("store for %s cannot publish to %s", e.Expected, e.Actual)
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	id       *AggregateId
	log      *zerolog.Logger
	attempts uint
}

func WithAggregateId(id AggregateId) StoreOption {
	return func(o *storeOptions) {
		o.id = &id
	}
}

func WithLogger(logger *zerolog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.log = logger
	}
}

// WithConflictAttempts bounds how often a handler is re-run after losing an
// expected revision race.
func WithConflictAttempts(attempts uint) StoreOption {
	return func(o *storeOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
	}
}

// Store holds the current snapshot of a single entity. Commands are routed to
// their handlers, events the handlers publish are journaled to the event
// store, reduced into a new snapshot and handed to every observer, all under
// one lock so no observer sees a partial transition.
type Store[T any] struct {
	id       AggregateId
	initial  T
	events   EventStore
	renderer *Renderer[T]
	handlers CommandHandlers[T]
	log      *zerolog.Logger
	attempts uint

	// mu serialises transitions, lk guards the snapshot and olk the
	// observers so observers can read state and unsubscribe while notified.
	mu        sync.Mutex
	lk        sync.RWMutex
	entity    Entity[T]
	closed    bool
	olk       sync.Mutex
	observers []subscription[T]
	next      uint64
}

func NewStore[T any](descriptor ServiceDescriptor[T], events EventStore, options ...StoreOption) *Store[T] {
	opts := &storeOptions{attempts: defaultConflictAttempts}
	for _, option := range options {
		option(opts)
	}

	if opts.log == nil {
		opts.log = &log.Logger
	}

	var id AggregateId
	if opts.id != nil {
		id = *opts.id
	} else {
		id = AggregateId{
			Type: EntityTypeOf(descriptor.Initial).String(),
			Key:  ulid.Make().String(),
		}
	}

	logger := opts.log.With().Str("aggregate", id.String()).Logger()

	return &Store[T]{
		id:       id,
		initial:  descriptor.Initial,
		events:   events,
		renderer: descriptor.Renderer(),
		handlers: descriptor.CommandHandlers(),
		log:      &logger,
		attempts: opts.attempts,
		entity: Entity[T]{
			Aggregate: id,
			Revision:  InitialRevision,
			Type:      EntityTypeOf(descriptor.Initial),
			State:     descriptor.Initial,
		},
	}
}

func (s *Store[T]) Id() AggregateId {
	return s.id
}

func (s *Store[T]) State() Entity[T] {
	s.lk.RLock()
	defer s.lk.RUnlock()

	return s.entity
}

// Subscribe registers observer for every subsequent transition. The returned
// function unregisters it and may be called more than once.
func (s *Store[T]) Subscribe(observer Observer[T]) func() {
	s.olk.Lock()
	defer s.olk.Unlock()

	s.next++
	id := s.next
	s.observers = append(s.observers, subscription[T]{id: id, observer: observer})

	return func() {
		s.olk.Lock()
		defer s.olk.Unlock()

		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeState registers observer and returns the snapshot it starts from.
// The observer is notified of every transition after that snapshot and none
// before it. It must not be called from an observer of the same store.
func (s *Store[T]) SubscribeState(observer Observer[T]) (Entity[T], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.State(), s.Subscribe(observer)
}

// Dispatch runs command to completion and returns the snapshot current when
// it finished.
func (s *Store[T]) Dispatch(ctx context.Context, command Command) (Entity[T], error) {
	return s.dispatch(ctx, command, func() {})
}

// DispatchAsync starts command and returns once its handler has published
// its first transition, or has finished without publishing.
func (s *Store[T]) DispatchAsync(ctx context.Context, command Command) *Future[T] {
	future := newFuture[T]()
	started := make(chan struct{})

	var once sync.Once
	signal := func() {
		once.Do(func() { close(started) })
	}

	go func() {
		entity, err := s.dispatch(ctx, command, signal)
		signal()
		future.resolve(entity, err)
	}()

	<-started
	return future
}

func (s *Store[T]) dispatch(ctx context.Context, command Command, published func()) (Entity[T], error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "execute command")
	defer span.End()

	var publish EventPublisher = func(ctx context.Context, aggregateId AggregateId, options PublishOptions, events ...DomainEvent) (Revision, error) {
		revision, err := s.publish(ctx, aggregateId, options, events...)
		if err == nil {
			published()
		}
		return revision, err
	}

	dispatcher := &RoutedDispatcher[T]{Publish: publish, Handlers: s.handlers}

	var changed bool
	err := retry.Do(
		func() error {
			var err error
			changed, err = dispatcher.Dispatch(ctx, s.State(), command)
			return err
		},
		retry.RetryIf(func(err error) bool {
			return !changed && errors.Is(err, RevisionConflict)
		}),
		retry.Attempts(s.attempts),
		retry.Delay(time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		s.log.Debug().Err(err).Str("command", CommandNameOf(command).String()).Msg("command failed")
		return s.State(), err
	}

	return s.State(), nil
}

func (s *Store[T]) publish(ctx context.Context, aggregateId AggregateId, options PublishOptions, events ...DomainEvent) (Revision, error) {
	if aggregateId != s.id {
		return "", UnexpectedAggregateError{Expected: s.id, Actual: aggregateId}
	}

	if len(events) == 0 {
		return s.State().Revision, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "publish")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lk.RLock()
	current, closed := s.entity, s.closed
	s.lk.RUnlock()

	if closed {
		return "", ErrStoreClosed
	}

	if options.ExpectedRevision != "" && options.ExpectedRevision != current.Revision {
		return "", RevisionConflict
	}

	recorded, err := s.events.Publish(ctx, s.id, options, events...)
	if err != nil {
		if errors.Is(err, RevisionConflict) {
			return "", RevisionConflict
		}
		return "", errors.Wrap(err, "failed to journal events")
	}

	state, err := s.renderer.Apply(current.State, recorded...)
	if err != nil {
		s.log.Error().Err(err).Msg("journaled events could not be applied")
		return "", err
	}

	next := Entity[T]{
		Aggregate: s.id,
		Revision:  RevisionOf(recorded),
		Type:      EntityTypeOf(state),
		State:     state,
	}

	s.lk.Lock()
	s.entity = next
	s.lk.Unlock()

	s.log.Debug().
		Str("revision", next.Revision.String()).
		Int("events", len(recorded)).
		Msg("state published")

	s.notify(next)

	return next.Revision, nil
}

func (s *Store[T]) notify(entity Entity[T]) {
	s.olk.Lock()
	observers := make([]subscription[T], len(s.observers))
	copy(observers, s.observers)
	s.olk.Unlock()

	for _, sub := range observers {
		s.deliver(sub, entity)
	}
}

func (s *Store[T]) deliver(sub subscription[T], entity Entity[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Interface("panic", r).Uint64("subscription", sub.id).Msg("observer panicked")
		}
	}()

	sub.observer(entity)
}

// Journal loads every event recorded for the store's aggregate.
func (s *Store[T]) Journal(ctx context.Context) (Aggregate, error) {
	return s.events.Load(ctx, s.id)
}

// Replay renders the journal from the initial state. The result matches
// State() whenever no transition is in progress.
func (s *Store[T]) Replay(ctx context.Context) (Entity[T], error) {
	aggregate, err := s.Journal(ctx)
	if err != nil {
		return Entity[T]{}, err
	}

	return s.renderer.Render(ctx, s.initial, aggregate)
}

// Close drops every observer and rejects further transitions.
func (s *Store[T]) Close() {
	s.lk.Lock()
	s.closed = true
	s.lk.Unlock()

	s.olk.Lock()
	s.observers = nil
	s.olk.Unlock()
}
