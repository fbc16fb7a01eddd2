package dto

import "time"

// ErrorCode is the machine-readable error class in an ErrorResponse.
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidReference   ErrorCode = "INVALID_REFERENCE"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeUnknownKind        ErrorCode = "UNKNOWN_KIND"
	ErrorCodeTaskNotFound       ErrorCode = "TASK_NOT_FOUND"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      ErrorCode `json:"error"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds a response stamped with the current time.
func NewErrorResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{Code: code, Message: message, Timestamp: time.Now().UTC()}
}

// WithDetails returns a copy carrying details.
func (r ErrorResponse) WithDetails(details any) ErrorResponse {
	r.Details = details
	return r
}

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationDetails lists every rejected field of a 400 response.
type ValidationDetails struct {
	Errors []FieldError `json:"errors"`
}

// InternalDetails carries the diagnostic text of a 500 response.
type InternalDetails struct {
	Detail string `json:"detail"`
}
