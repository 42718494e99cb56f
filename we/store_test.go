package we

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tally struct {
	Count int `json:"count"`
}

type bump struct{}

type silent struct{}

type stray struct{}

type bumped struct{}

type tallyFixture struct {
	store     *Store[tally]
	events    *journal
	hook      func(ctx context.Context, state Entity[tally]) error
	expecting func(state Entity[tally]) Revision
	release   chan struct{}
}

// journal is a minimal in-package event store so the store can be tested
// without a backend package.
type journal struct {
	lk        sync.Mutex
	generator *RevisionGenerator
	events    map[EncodedAggregateId][]RecordedEvent
}

func newJournal() *journal {
	return &journal{generator: NewRevisionGenerator(), events: map[EncodedAggregateId][]RecordedEvent{}}
}

func (j *journal) Load(ctx context.Context, id AggregateId) (Aggregate, error) {
	j.lk.Lock()
	defer j.lk.Unlock()

	events := append([]RecordedEvent{}, j.events[id.Encode()]...)
	return Aggregate{Id: id, Events: events, Revision: RevisionOf(events)}, nil
}

func (j *journal) Publish(ctx context.Context, id AggregateId, options PublishOptions, events ...DomainEvent) ([]RecordedEvent, error) {
	j.lk.Lock()
	defer j.lk.Unlock()

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	current := j.events[id.Encode()]
	if options.ExpectedRevision != "" && options.ExpectedRevision != RevisionOf(current) {
		return nil, RevisionConflict
	}

	recorded := make([]RecordedEvent, len(events))
	for i, event := range events {
		data, err := MarshalToData(event)
		if err != nil {
			return nil, err
		}

		revision := j.generator.NewRevision(time.Now())
		recorded[i] = RecordedEvent{
			AggregateId: id,
			Revision:    revision,
			EventID:     EventID(revision),
			EventType:   EventTypeOf(event),
			Metadata:    options.RecordedEventMetadata,
			Data:        data,
		}
	}

	j.events[id.Encode()] = append(current, recorded...)
	return recorded, nil
}

func newTallyFixture(options ...StoreOption) *tallyFixture {
	fixture := &tallyFixture{
		events:  newJournal(),
		release: make(chan struct{}),
	}

	var bumpHandler CommandHandlerFunction[tally, bump] = func(ctx context.Context, cmd bump, state Entity[tally], publish EventPublisher) error {
		if fixture.hook != nil {
			if err := fixture.hook(ctx, state); err != nil {
				return err
			}
		}

		expected := Revision("")
		if fixture.expecting != nil {
			expected = fixture.expecting(state)
		}

		_, err := publish(ctx, state.Aggregate, Options(WithExpectedRevision(expected)), bumped{})
		return err
	}

	var silentHandler CommandHandlerFunction[tally, silent] = func(ctx context.Context, cmd silent, state Entity[tally], publish EventPublisher) error {
		<-fixture.release
		return nil
	}

	var strayHandler CommandHandlerFunction[tally, stray] = func(ctx context.Context, cmd stray, state Entity[tally], publish EventPublisher) error {
		_, err := publish(ctx, AggregateId{Type: "we:tally", Key: "elsewhere"}, Options(), bumped{})
		return err
	}

	var bumpedReducer ReducerFunction[tally, bumped] = func(state tally, evt bumped) tally {
		state.Count++
		return state
	}

	descriptor := ServiceDescriptor[tally]{
		Initial: tally{},
		Handlers: map[CommandName]func() CommandHandler[tally]{
			CommandNameOf(bump{}):   func() CommandHandler[tally] { return bumpHandler },
			CommandNameOf(silent{}): func() CommandHandler[tally] { return silentHandler },
			CommandNameOf(stray{}):  func() CommandHandler[tally] { return strayHandler },
		},
		Reducers: map[EventType]func() Reducer[tally]{
			EventTypeOf(bumped{}): func() Reducer[tally] { return bumpedReducer },
		},
	}

	fixture.store = NewStore(descriptor, fixture.events, options...)
	return fixture
}

func TestStoreDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("starts at the initial revision", func(t *testing.T) {
		fixture := newTallyFixture()

		state := fixture.store.State()
		assert.False(t, state.Initialized())
		assert.Equal(t, EntityType("we:tally"), state.Type)
		assert.Equal(t, "we:tally", fixture.store.Id().Type)
	})

	t.Run("uses the configured aggregate id", func(t *testing.T) {
		id := AggregateId{Type: "we:tally", Key: "fixed"}
		fixture := newTallyFixture(WithAggregateId(id))

		entity, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)
		assert.Equal(t, id, entity.Aggregate)
	})

	t.Run("applies published events", func(t *testing.T) {
		fixture := newTallyFixture()

		entity, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		assert.Equal(t, 1, entity.State.Count)
		assert.True(t, entity.Initialized())
		assert.Equal(t, entity, fixture.store.State())
	})

	t.Run("rejects unknown commands", func(t *testing.T) {
		fixture := newTallyFixture()

		_, err := fixture.store.Dispatch(ctx, tally{})
		assert.Equal(t, CommandNotFound("we:tally"), err)
	})

	t.Run("rejects events for other aggregates", func(t *testing.T) {
		fixture := newTallyFixture()

		_, err := fixture.store.Dispatch(ctx, stray{})
		assert.ErrorAs(t, err, &UnexpectedAggregateError{})
		assert.Equal(t, 0, fixture.store.State().State.Count)
	})

	t.Run("rejects commands once closed", func(t *testing.T) {
		fixture := newTallyFixture()
		fixture.store.Close()

		_, err := fixture.store.Dispatch(ctx, bump{})
		assert.ErrorIs(t, err, ErrStoreClosed)
	})
}

func TestStoreConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("re-runs a handler that lost a race", func(t *testing.T) {
		fixture := newTallyFixture()

		attempts := 0
		nested := false
		fixture.hook = func(ctx context.Context, state Entity[tally]) error {
			if nested {
				return nil
			}

			attempts++
			if attempts > 1 {
				return nil
			}

			nested = true
			defer func() { nested = false }()

			_, err := fixture.store.Dispatch(ctx, bump{})
			return err
		}
		fixture.expecting = func(state Entity[tally]) Revision {
			if nested {
				return ""
			}
			return state.Revision
		}

		entity, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		assert.Equal(t, 2, attempts)
		assert.Equal(t, 2, entity.State.Count)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		fixture := newTallyFixture(WithConflictAttempts(3))

		attempts := 0
		fixture.hook = func(ctx context.Context, state Entity[tally]) error {
			attempts++
			return nil
		}
		fixture.expecting = func(state Entity[tally]) Revision { return "stale" }

		_, err := fixture.store.Dispatch(ctx, bump{})
		assert.ErrorIs(t, err, RevisionConflict)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not re-run other failures", func(t *testing.T) {
		fixture := newTallyFixture()
		failure := errors.New("boom")

		attempts := 0
		fixture.hook = func(ctx context.Context, state Entity[tally]) error {
			attempts++
			return failure
		}

		_, err := fixture.store.Dispatch(ctx, bump{})
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, attempts)
	})
}

func TestStoreAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves once the handler finishes", func(t *testing.T) {
		fixture := newTallyFixture()

		future := fixture.store.DispatchAsync(ctx, bump{})
		entity, err := future.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, entity.State.Count)
	})

	t.Run("waits for handlers that never publish", func(t *testing.T) {
		fixture := newTallyFixture()

		returned := make(chan *Future[tally])
		go func() {
			returned <- fixture.store.DispatchAsync(ctx, silent{})
		}()

		select {
		case <-returned:
			t.Fatal("dispatch returned before the handler finished")
		case <-time.After(20 * time.Millisecond):
		}

		close(fixture.release)
		future := <-returned

		<-future.Done()
		entity, err := future.Wait(ctx)
		require.NoError(t, err)
		assert.False(t, entity.Initialized())
	})

	t.Run("stops waiting when the context is done", func(t *testing.T) {
		fixture := newTallyFixture()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		future := newFuture[tally]()
		_, err := future.Wait(cctx)
		assert.ErrorIs(t, err, context.Canceled)

		fixture.store.Close()
	})
}

func TestStoreObservers(t *testing.T) {
	ctx := context.Background()

	t.Run("observers may read state while notified", func(t *testing.T) {
		fixture := newTallyFixture()

		var observed []Entity[tally]
		fixture.store.Subscribe(func(entity Entity[tally]) {
			assert.Equal(t, entity, fixture.store.State())
			observed = append(observed, entity)
		})

		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		require.Len(t, observed, 1)
		assert.Equal(t, 1, observed[0].State.Count)
	})

	t.Run("a panicking observer does not stop delivery", func(t *testing.T) {
		fixture := newTallyFixture()

		fixture.store.Subscribe(func(entity Entity[tally]) {
			panic("observer failure")
		})

		delivered := 0
		fixture.store.Subscribe(func(entity Entity[tally]) {
			delivered++
		})

		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)
		assert.Equal(t, 1, delivered)
	})

	t.Run("unsubscribing stops delivery", func(t *testing.T) {
		fixture := newTallyFixture()

		delivered := 0
		unsubscribe := fixture.store.Subscribe(func(entity Entity[tally]) {
			delivered++
		})

		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		unsubscribe()
		unsubscribe()

		_, err = fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)
		assert.Equal(t, 1, delivered)
	})

	t.Run("closing drops observers", func(t *testing.T) {
		fixture := newTallyFixture()

		delivered := 0
		fixture.store.Subscribe(func(entity Entity[tally]) {
			delivered++
		})
		fixture.store.Close()

		_, _ = fixture.store.Dispatch(ctx, bump{})
		assert.Equal(t, 0, delivered)
	})

	t.Run("subscribing with state waits for the transition in progress", func(t *testing.T) {
		fixture := newTallyFixture()

		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		fixture.store.Subscribe(func(entity Entity[tally]) {
			once.Do(func() {
				close(entered)
				<-release
			})
		})

		dispatched := make(chan error, 1)
		go func() {
			_, err := fixture.store.Dispatch(ctx, bump{})
			dispatched <- err
		}()
		<-entered

		type subscribed struct {
			current     Entity[tally]
			unsubscribe func()
		}

		var lk sync.Mutex
		var seen []int
		result := make(chan subscribed, 1)
		go func() {
			current, unsubscribe := fixture.store.SubscribeState(func(entity Entity[tally]) {
				lk.Lock()
				defer lk.Unlock()
				seen = append(seen, entity.State.Count)
			})
			result <- subscribed{current: current, unsubscribe: unsubscribe}
		}()

		select {
		case <-result:
			t.Fatal("subscribed while a transition was being delivered")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-dispatched)

		sub := <-result
		defer sub.unsubscribe()
		assert.Equal(t, 1, sub.current.State.Count)

		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		lk.Lock()
		defer lk.Unlock()
		assert.Equal(t, []int{2}, seen)
	})

	t.Run("selectors read the current state", func(t *testing.T) {
		fixture := newTallyFixture()

		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)

		count := Select[tally, int](fixture.store, func(state tally) int { return state.Count })
		assert.Equal(t, 1, count)
	})
}

func TestStoreReplay(t *testing.T) {
	ctx := context.Background()
	fixture := newTallyFixture()

	for i := 0; i < 5; i++ {
		_, err := fixture.store.Dispatch(ctx, bump{})
		require.NoError(t, err)
	}

	journal, err := fixture.store.Journal(ctx)
	require.NoError(t, err)
	assert.Len(t, journal.Events, 5)

	replayed, err := fixture.store.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixture.store.State(), replayed)
}

func TestEntityService(t *testing.T) {
	ctx := context.Background()

	created := 0
	service := NewEntityService(func(ctx context.Context, id AggregateId) (*Store[tally], error) {
		if id.Type != "we:tally" {
			return nil, UnknownEntityError{Id: id}
		}

		created++
		return newTallyFixture(WithAggregateId(id)).store, nil
	})
	defer service.Close()

	id := AggregateId{Type: "we:tally", Key: "shared"}

	t.Run("keeps one store per aggregate", func(t *testing.T) {
		_, err := service.Execute(ctx, id, bump{})
		require.NoError(t, err)
		_, err = service.Execute(ctx, id, bump{})
		require.NoError(t, err)

		loaded, err := service.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.State.Count)
		assert.Equal(t, 1, created)
	})

	t.Run("observes existing and future stores", func(t *testing.T) {
		var seen []AggregateId
		service.Observe(func(entity Entity[tally]) {
			seen = append(seen, entity.Aggregate)
		})

		other := AggregateId{Type: "we:tally", Key: "other"}

		_, err := service.Execute(ctx, id, bump{})
		require.NoError(t, err)
		_, err = service.Execute(ctx, other, bump{})
		require.NoError(t, err)

		assert.Equal(t, []AggregateId{id, other}, seen)
	})

	t.Run("subscribes to a single aggregate", func(t *testing.T) {
		delivered := 0
		current, unsubscribe, err := service.Subscribe(ctx, id, func(entity Entity[tally]) {
			delivered++
		})
		require.NoError(t, err)
		assert.Equal(t, 3, current.State.Count)

		_, err = service.Execute(ctx, id, bump{})
		require.NoError(t, err)
		unsubscribe()
		_, err = service.Execute(ctx, id, bump{})
		require.NoError(t, err)

		assert.Equal(t, 1, delivered)
	})

	t.Run("reports unknown entities", func(t *testing.T) {
		_, err := service.Load(ctx, AggregateId{Type: "other", Key: "shared"})
		assert.ErrorAs(t, err, &UnknownEntityError{})
	})
}
