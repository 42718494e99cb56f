package we

// ServiceDescriptor describes an entity: its initial state, the handlers for
// the commands it accepts and the reducers for the events it records.
type ServiceDescriptor[T any] struct {
	Initial  T
	Handlers map[CommandName]func() CommandHandler[T]
	Reducers map[EventType]func() Reducer[T]
}

func (d ServiceDescriptor[T]) CommandHandlers() CommandHandlers[T] {
	handlers := make(CommandHandlers[T], len(d.Handlers))
	for name, handler := range d.Handlers {
		handlers[name] = handler()
	}

	return handlers
}

func (d ServiceDescriptor[T]) Renderer() *Renderer[T] {
	reducers := make(Reducers[T], len(d.Reducers))
	for name, reducer := range d.Reducers {
		reducers[name] = reducer()
	}

	return &Renderer[T]{Reducers: reducers}
}
