package jetstream

import (
	"github.com/weegigs/wee-counter-go/internal"
	"github.com/weegigs/wee-counter-go/we"
)

type EventRecord struct {
	AggregateId we.AggregateId           `json:"aggregate-id"`
	EventID     we.EventID               `json:"id"`
	EventType   we.EventType             `json:"type"`
	Data        we.Data                  `json:"data"`
	Metadata    we.RecordedEventMetadata `json:"metadata"`
}

// ChangeSet is the message body for one publish. Revisions are derived from
// Timestamp and the stream sequence the message lands on.
type ChangeSet struct {
	Timestamp we.Timestamp  `json:"timestamp"`
	Events    []EventRecord `json:"events"`
}

func (cs *ChangeSet) Recorded(sequence uint64) ([]we.RecordedEvent, error) {
	at, err := cs.Timestamp.Time()
	if err != nil {
		return nil, err
	}

	ms := uint64(at.UnixMilli())

	result := make([]we.RecordedEvent, 0, len(cs.Events))
	for i, event := range cs.Events {
		revision, err := internal.EncodeRevision(ms, sequence, uint16(i))
		if err != nil {
			return nil, err
		}

		result = append(result, we.RecordedEvent{
			AggregateId: event.AggregateId,
			EventID:     event.EventID,
			Revision:    revision,
			Timestamp:   cs.Timestamp,
			EventType:   event.EventType,
			Data:        event.Data,
			Metadata:    event.Metadata,
		})
	}

	return result, nil
}
