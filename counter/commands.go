package counter

// Action is the closed set of commands a counter store accepts.
type Action interface {
	TypeName() string
	action()
}

const (
	IncrementCmd         = "counter/increment"
	DecrementCmd         = "counter/decrement"
	IncrementByAmountCmd = "counter/incrementByAmount"
	IncrementAsyncCmd    = "counter/fetchCount"
	IncrementIfOddCmd    = "counter/incrementIfOdd"
)

type Increment struct{}

func (Increment) TypeName() string { return IncrementCmd }
func (Increment) action()          {}

type Decrement struct{}

func (Decrement) TypeName() string { return DecrementCmd }
func (Decrement) action()          {}

type IncrementByAmount struct {
	Amount int `json:"amount"`
}

func (IncrementByAmount) TypeName() string { return IncrementByAmountCmd }
func (IncrementByAmount) action()          {}

// IncrementAsync fetches a delta for Amount and adds it to the value.
type IncrementAsync struct {
	Amount int `json:"amount"`
}

func (IncrementAsync) TypeName() string { return IncrementAsyncCmd }
func (IncrementAsync) action()          {}

// IncrementIfOdd adds Amount when the current value is odd. Odd means
// value % 2 == 1, so negative values never qualify.
type IncrementIfOdd struct {
	Amount int `json:"amount"`
}

func (IncrementIfOdd) TypeName() string { return IncrementIfOddCmd }
func (IncrementIfOdd) action()          {}
