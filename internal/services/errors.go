package services

// ValidationError lists request fields that failed validation.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string { return "Validation error" }

// UpstreamError wraps any failure of the completion call. Message is what the
// client is allowed to see; Err keeps the original cause for logging.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return "upstream completion failed: " + e.Err.Error()
	}
	return "upstream completion failed: " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }
