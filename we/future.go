package we

import "context"

// Future is the pending result of an asynchronously dispatched command.
type Future[T any] struct {
	done   chan struct{}
	entity Entity[T]
	err    error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(entity Entity[T], err error) {
	f.entity = entity
	f.err = err
	close(f.done)
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the command completes or ctx is done. Giving up on the
// wait does not cancel the command.
func (f *Future[T]) Wait(ctx context.Context) (Entity[T], error) {
	select {
	case <-f.done:
		return f.entity, f.err
	case <-ctx.Done():
		return Entity[T]{}, ctx.Err()
	}
}
