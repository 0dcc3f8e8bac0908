package core

// Error codes for domain errors surfaced over the socket.
const (
	ErrCodeForbidden  = "forbidden"
	ErrCodeBadRequest = "bad_request"
	ErrCodeInternal   = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
