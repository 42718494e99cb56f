package counter

import "github.com/weegigs/wee-counter-go/we"

// Reduce returns the state that follows event. state is a copy, so the
// caller's snapshot is never touched.
func Reduce(state State, event Event) State {
	switch e := event.(type) {
	case Incremented:
		state.Value += 1
	case Decremented:
		state.Value -= 1
	case IncrementedByAmount:
		state.Value += e.Amount
	case FetchCountPending:
		state.Outstanding++
	case FetchCountFulfilled:
		state.Value += e.Delta
		state.Outstanding = settle(state.Outstanding)
	case FetchCountRejected:
		state.Outstanding = settle(state.Outstanding)
	}

	state.Status = statusOf(state.Outstanding)
	return state
}

func settle(outstanding int) int {
	if outstanding > 0 {
		return outstanding - 1
	}

	return 0
}

func reducer[E Event]() we.Reducer[State] {
	var r we.ReducerFunction[State, E] = func(state State, evt E) State {
		return Reduce(state, evt)
	}

	return r
}

func Reducers() map[we.EventType]func() we.Reducer[State] {
	return map[we.EventType]func() we.Reducer[State]{
		IncrementedEvent:         reducer[Incremented],
		DecrementedEvent:         reducer[Decremented],
		IncrementedByAmountEvent: reducer[IncrementedByAmount],
		FetchCountPendingEvent:   reducer[FetchCountPending],
		FetchCountFulfilledEvent: reducer[FetchCountFulfilled],
		FetchCountRejectedEvent:  reducer[FetchCountRejected],
	}
}
