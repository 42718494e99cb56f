package counter

import "github.com/weegigs/wee-counter-go/we"

const EntityType = we.EntityType("counter")

type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
)

// State is the counter slice. Status is Loading exactly while Outstanding
// fetches are in flight.
type State struct {
	Value       int    `json:"value"`
	Status      Status `json:"status"`
	Outstanding int    `json:"outstanding"`
}

func (State) EntityType() we.EntityType {
	return EntityType
}

func InitialState() State {
	return State{Value: 0, Status: Idle}
}

func statusOf(outstanding int) Status {
	if outstanding > 0 {
		return Loading
	}

	return Idle
}
