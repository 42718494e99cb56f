package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-counter-go/internal"
	"github.com/weegigs/wee-counter-go/we"
)

type EventStoreOption func(*EventStore)

const prefix = "change-set."

// NewEventStore journals to the JetStream stream name, creating it if
// needed. Each aggregate publishes to its own subject so expected revisions
// map onto the last sequence for that subject.
func NewEventStore(name string, connection *nats.Conn, options ...EventStoreOption) (*EventStore, error) {
	stream, err := connection.JetStream()
	if err != nil {
		return nil, errors.Wrap(err, "jetstream unavailable")
	}

	if _, err := stream.StreamInfo(name); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return nil, err
		}

		_, err = stream.AddStream(&nats.StreamConfig{
			Name:        name,
			Description: "change set stream for " + name,
			Subjects:    []string{prefix + ">"},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create stream %s", name)
		}
	}

	store := &EventStore{
		name:    name,
		manager: stream,
		stream:  stream,
	}

	for _, option := range options {
		option(store)
	}

	if store.clock == nil {
		store.clock = defaultClock{}
	}

	if store.marshaller == nil {
		store.marshaller = JSONMarshaller{}
	}

	return store, nil
}

type EventStore struct {
	name       string
	manager    nats.JetStreamManager
	stream     nats.JetStream
	clock      Clock
	marshaller Marshaller
}

func subject(aggregateId we.AggregateId) string {
	return prefix + aggregateId.Encode().String()
}

func (es *EventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) ([]we.RecordedEvent, error) {
	if len(events) == 0 {
		return nil, we.ErrNoEvents
	}

	now := es.clock.Now()
	records := make([]EventRecord, len(events))

	for index, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return nil, err
		}

		records[index] = EventRecord{
			EventID:     we.EventID(ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()),
			EventType:   we.EventTypeOf(event),
			AggregateId: aggregateId,
			Data:        data,
			Metadata:    options.RecordedEventMetadata,
		}
	}

	changeset := ChangeSet{Timestamp: we.TimestampFromTime(now), Events: records}
	bytes, err := es.marshaller.Marshal(changeset)
	if err != nil {
		return nil, err
	}

	var opts = []nats.PubOpt{nats.Context(ctx)}

	expected := options.ExpectedRevision
	if expected != "" {
		if expected == we.InitialRevision {
			opts = append(opts, nats.ExpectLastSequencePerSubject(0))
		} else {
			sequenceNumber, err := internal.DecodeSequenceNumber(expected)
			if err != nil {
				return nil, err
			}

			opts = append(opts, nats.ExpectLastSequencePerSubject(sequenceNumber))
		}
	}

	ack, err := es.stream.Publish(subject(aggregateId), bytes, opts...)
	if err != nil {
		var api *nats.APIError
		if errors.As(err, &api) && api.ErrorCode == nats.JSErrCodeStreamWrongLastSequence {
			return nil, we.RevisionConflict
		}
		return nil, err
	}

	return changeset.Recorded(ack.Sequence)
}

func (es *EventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	events, err := es.read(ctx, subject(id))
	if err != nil {
		return we.Aggregate{}, err
	}

	return we.Aggregate{
		Id:       id,
		Events:   events,
		Revision: we.RevisionOf(events),
	}, nil
}

// Remove purges the aggregate's subject and reports how many change sets
// were dropped.
func (es *EventStore) Remove(ctx context.Context, id we.AggregateId) (int, error) {
	info, err := es.manager.StreamInfo(es.name, nats.Context(ctx))
	if err != nil {
		return 0, err
	}

	before := info.State.Msgs

	if err := es.manager.PurgeStream(es.name, &nats.StreamPurgeRequest{Subject: subject(id)}, nats.Context(ctx)); err != nil {
		return 0, err
	}

	info, err = es.manager.StreamInfo(es.name, nats.Context(ctx))
	if err != nil {
		return 0, err
	}

	return int(before - info.State.Msgs), nil
}

func (es *EventStore) latest(ctx context.Context, subject string) (*uint64, error) {
	msg, err := es.manager.GetLastMsg(es.name, subject, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrMsgNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &msg.Sequence, nil
}

func (es *EventStore) read(ctx context.Context, subject string) ([]we.RecordedEvent, error) {
	latest, err := es.latest(ctx, subject)
	if err != nil {
		return nil, err
	}

	if latest == nil {
		return nil, nil
	}

	subscription, err := es.stream.SubscribeSync(subject, nats.DeliverAll(), nats.OrderedConsumer())
	if err != nil {
		return nil, err
	}
	defer func(subscription *nats.Subscription) {
		err := subscription.Unsubscribe()
		if err != nil {
			log.Err(err).Msg("ephemeral stream subscription failed to unsubscribe cleanly")
		}
	}(subscription)

	var events []we.RecordedEvent
	for {
		msg, err := subscription.NextMsgWithContext(ctx)
		if err != nil {
			return nil, err
		}

		metadata, err := msg.Metadata()
		if err != nil {
			return nil, err
		}

		cs := &ChangeSet{}
		if err := es.marshaller.Unmarshal(msg.Data, cs); err != nil {
			return nil, err
		}

		recorded, err := cs.Recorded(metadata.Sequence.Stream)
		if err != nil {
			return nil, err
		}

		events = append(events, recorded...)

		if metadata.Sequence.Stream >= *latest {
			break
		}
	}

	return events, nil
}
