package ds

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-counter-go/we"
)

var entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

func createId() we.AggregateId {
	return we.AggregateId{
		Type: "go-test",
		Key:  ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
	}
}

var TestedEvent = we.EventType("test:test-event")

type Tested struct {
	TestStringValue string `json:"test_string_value"`
	TestIntValue    int    `json:"test_int_value"`
}

func (Tested) EventType() we.EventType {
	return TestedEvent
}

func TestChangeSet(t *testing.T) {
	id := createId()
	generator := we.NewRevisionGenerator()

	events := make([]we.RecordedEvent, 3)
	for i := range events {
		data, err := we.MarshalToData(Tested{TestIntValue: i})
		require.NoError(t, err)

		revision := generator.NewRevision(time.Now())
		events[i] = we.RecordedEvent{AggregateId: id, Revision: revision, EventID: we.EventID(revision), EventType: TestedEvent, Data: data}
	}

	changes, err := NewChangeSet(id, events)
	require.NoError(t, err)

	t.Run("is keyed by aggregate and last revision", func(t *testing.T) {
		assert.Equal(t, id.Encode().String(), changes.PartitionKey)
		assert.Equal(t, "change-set#"+events[2].Revision.String(), changes.SortKey)
		assert.Equal(t, events[2].Revision, changes.Revision)
		assert.Equal(t, latestSortKey, changes.Latest().SortKey)
	})

	t.Run("round trips events", func(t *testing.T) {
		decoded, err := changes.RecordedEvents()
		require.NoError(t, err)
		assert.Equal(t, events, decoded)

		aggregateId, err := changes.AggregateId()
		require.NoError(t, err)
		assert.Equal(t, id, *aggregateId)
	})

	t.Run("rejects empty change sets", func(t *testing.T) {
		_, err := NewChangeSet(id, nil)
		assert.ErrorIs(t, err, we.ErrNoEvents)
	})
}

func TestDynamoDBStore(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	store, tearDown, err := DynamoTestStore(ctx)
	if err != nil {
		t.Logf("failed to create test store. %+v", err)
		t.FailNow()
	}

	defer tearDown()

	t.Run("dynamodb event store validation", func(t *testing.T) {
		suite := we.NewEventStoreValidationSuite(ctx, store)
		suite.Run(t)
	})

	t.Run("removes details for entities", func(t *testing.T) {
		event := Tested{
			TestStringValue: "test string",
			TestIntValue:    42,
		}
		aggregateId := createId()

		_, err := store.Publish(ctx, aggregateId, we.Options(), event)
		if !assert.Nil(t, err) {
			return
		}

		count, err := store.Remove(ctx, aggregateId)
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, 2, count)

		loaded, err := store.Load(ctx, aggregateId)
		assert.Nil(t, err)
		assert.Equal(t, we.InitialRevision, loaded.Revision)
	})
}
