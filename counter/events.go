package counter

import "github.com/weegigs/wee-counter-go/we"

// Event is the closed set of transitions recorded for a counter.
type Event interface {
	EventType() we.EventType
	event()
}

const (
	IncrementedEvent         = we.EventType("counter/increment")
	DecrementedEvent         = we.EventType("counter/decrement")
	IncrementedByAmountEvent = we.EventType("counter/incrementByAmount")
	FetchCountPendingEvent   = we.EventType("counter/fetchCount/pending")
	FetchCountFulfilledEvent = we.EventType("counter/fetchCount/fulfilled")
	FetchCountRejectedEvent  = we.EventType("counter/fetchCount/rejected")
)

type Incremented struct{}

func (Incremented) EventType() we.EventType { return IncrementedEvent }
func (Incremented) event()                  {}

type Decremented struct{}

func (Decremented) EventType() we.EventType { return DecrementedEvent }
func (Decremented) event()                  {}

type IncrementedByAmount struct {
	Amount int `json:"amount"`
}

func (IncrementedByAmount) EventType() we.EventType { return IncrementedByAmountEvent }
func (IncrementedByAmount) event()                  {}

type FetchCountPending struct {
	Amount int `json:"amount"`
}

func (FetchCountPending) EventType() we.EventType { return FetchCountPendingEvent }
func (FetchCountPending) event()                  {}

type FetchCountFulfilled struct {
	Amount int `json:"amount"`
	Delta  int `json:"delta"`
}

func (FetchCountFulfilled) EventType() we.EventType { return FetchCountFulfilledEvent }
func (FetchCountFulfilled) event()                  {}

type FetchCountRejected struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (FetchCountRejected) EventType() we.EventType { return FetchCountRejectedEvent }
func (FetchCountRejected) event()                  {}
