package we

// Observer receives every snapshot a store publishes, in publish order. It is
// called while the store is serialising transitions and must not dispatch to
// the same store synchronously.
type Observer[T any] func(entity Entity[T])

type subscription[T any] struct {
	id       uint64
	observer Observer[T]
}

type Selector[T any, V any] func(state T) V

type StateReader[T any] interface {
	State() Entity[T]
}

func Select[T any, V any](store StateReader[T], selector Selector[T, V]) V {
	return selector(store.State().State)
}
