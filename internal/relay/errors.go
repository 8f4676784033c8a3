package relay

// ValidationError reports malformed or out-of-range client input. It is
// always terminal: the request is rejected with a 400 and nothing is
// broadcast or forwarded.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation builds a ValidationError with the given client-facing message.
func Validation(message string) *ValidationError {
	return &ValidationError{Message: message}
}
