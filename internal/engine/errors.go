package engine

// ValidationError reports rejected input.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

// ConflictError reports an operation refused by the current state of the
// world rather than by the input.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string {
	return e.Msg
}
