package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-counter-go/we"
)

type EventStoreOption func(*EventStore)

func WithClock(now func() time.Time) EventStoreOption {
	return func(store *EventStore) {
		store.now = now
	}
}

// EventStore journals events in process memory. It is the default journal
// for counter stores, which never outlive the process.
type EventStore struct {
	now      func() time.Time
	revision *we.RevisionGenerator

	lk         sync.RWMutex
	aggregates map[we.EncodedAggregateId][]we.RecordedEvent
}

func NewEventStore(options ...EventStoreOption) *EventStore {
	store := &EventStore{
		now:        time.Now,
		revision:   we.NewRevisionGenerator(),
		aggregates: make(map[we.EncodedAggregateId][]we.RecordedEvent),
	}

	for _, option := range options {
		option(store)
	}

	return store
}

func (es *EventStore) Load(_ context.Context, id we.AggregateId) (we.Aggregate, error) {
	es.lk.RLock()
	defer es.lk.RUnlock()

	stored := es.aggregates[id.Encode()]
	events := make([]we.RecordedEvent, len(stored))
	copy(events, stored)

	return we.Aggregate{
		Id:       id,
		Events:   events,
		Revision: we.RevisionOf(events),
	}, nil
}

func (es *EventStore) Publish(_ context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) ([]we.RecordedEvent, error) {
	if len(events) == 0 {
		return nil, we.ErrNoEvents
	}

	now := es.now()
	timestamp := we.TimestampFromTime(now)

	recorded := make([]we.RecordedEvent, len(events))
	for index, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal event")
		}

		revision := es.revision.NewRevision(now)
		recorded[index] = we.RecordedEvent{
			AggregateId: aggregateId,
			Revision:    revision,
			EventID:     we.EventID(revision),
			EventType:   we.EventTypeOf(event),
			Timestamp:   timestamp,
			Metadata:    options.RecordedEventMetadata,
			Data:        data,
		}
	}

	es.lk.Lock()
	defer es.lk.Unlock()

	key := aggregateId.Encode()
	current := es.aggregates[key]

	if expected := options.ExpectedRevision; expected != "" && expected != we.RevisionOf(current) {
		return nil, we.RevisionConflict
	}

	es.aggregates[key] = append(current, recorded...)

	result := make([]we.RecordedEvent, len(recorded))
	copy(result, recorded)

	return result, nil
}

// Remove drops the journal for id and reports how many events it held.
func (es *EventStore) Remove(_ context.Context, id we.AggregateId) (int, error) {
	es.lk.Lock()
	defer es.lk.Unlock()

	key := id.Encode()
	count := len(es.aggregates[key])
	delete(es.aggregates, key)

	return count, nil
}
