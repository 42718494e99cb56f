package jetstream

import "github.com/goccy/go-json"

func WithMarshaller(marshaller Marshaller) EventStoreOption {
	return func(store *EventStore) {
		store.marshaller = marshaller
	}
}

type Marshaller interface {
	Unmarshal(data []byte, v any) error
	Marshal(v any) ([]byte, error)
}

type JSONMarshaller struct{}

func (JSONMarshaller) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONMarshaller) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
