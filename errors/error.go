package errors

import "fmt"

const (
	ErrCodeConfiguration int64 = 1000 + iota + 1
	ErrCodeConnection
)

var (
	// ErrConfiguration matches any error raised for invalid or unusable configuration.
	ErrConfiguration = NewError(ErrCodeConfiguration, "configuration error", nil)
	// ErrConnection matches any error raised when the remote store cannot be reached.
	ErrConnection = NewError(ErrCodeConnection, "connection error", nil)
)

type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Cause   error  // the underlying error
	Details any    `json:"details,omitempty"`
}

func NewError(code int64, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func Configuration(format string, args ...any) *Error {
	return NewError(ErrCodeConfiguration, fmt.Sprintf(format, args...), nil)
}

func Connection(message string, cause error) *Error {
	return NewError(ErrCodeConnection, message, cause)
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) GetCode() int64 {
	return e.Code
}

func (e *Error) GetMessage() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) GetDetails() any {
	return e.Details
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
