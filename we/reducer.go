package we

// Reducer is a pure transition from one snapshot to the next. The state it is
// handed must not be modified in place.
type Reducer[T any] interface {
	Reduce(state T, evt *RecordedEvent) (T, error)
}

type Reducers[T any] map[EventType]Reducer[T]

type ReducerFunction[T any, E any] func(state T, evt E) T

func (f ReducerFunction[T, E]) Reduce(state T, evt *RecordedEvent) (T, error) {
	var event E
	if err := evt.Decode(&event); err != nil {
		return state, err
	}

	return f(state, event), nil
}
