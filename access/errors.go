package access

import "fmt"

// Error is the structured failure type returned by every operation in the
// proxy core. Errors are matched by code, so wrapping helpers can attach
// detail without breaking errors.Is checks against the sentinels below.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Wrapped error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return e.Message + ": " + e.Wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is matches errors by code so derived errors compare equal to their
// sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrDuplicateType    = &Error{Code: "duplicate_type", Message: "resource type already registered"}
	ErrTypeNotFound     = &Error{Code: "type_not_found", Message: "resource type not registered"}
	ErrResourceNotFound = &Error{Code: "resource_not_found", Message: "resource not found"}
	ErrBranchNotFound   = &Error{Code: "branch_not_found", Message: "branch not found"}
	ErrActionNotFound   = &Error{Code: "action_not_found", Message: "action not found"}
	ErrPermissionDenied = &Error{Code: "permission_denied", Message: "permission denied"}
	ErrMissingParameter = &Error{Code: "missing_parameter", Message: "missing required parameter"}
	ErrHandler          = &Error{Code: "handler_error", Message: "handler failed"}
	ErrTimeout          = &Error{Code: "timeout", Message: "action timed out"}
	ErrInvalidResource  = &Error{Code: "invalid_resource", Message: "invalid resource definition"}
)

// Errf returns a detailed error carrying the given sentinel's code.
// The detail stays server-side; callers see only the uniform payload.
func Errf(sentinel *Error, format string, args ...any) *Error {
	return &Error{Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// MissingParameter reports an absent required parameter by name.
func MissingParameter(name string) *Error {
	return &Error{Code: ErrMissingParameter.Code, Message: fmt.Sprintf("missing required parameter %q", name)}
}

// HandlerError wraps a failure surfaced by an action handler or the backend.
// It is returned once and never retried.
func HandlerError(err error) *Error {
	return &Error{Code: ErrHandler.Code, Message: "handler failed", Wrapped: err}
}

// Timeout wraps a deadline expiry during handler invocation.
func Timeout(err error) *Error {
	return &Error{Code: ErrTimeout.Code, Message: "action timed out", Wrapped: err}
}

// Invalidf reports a malformed resource definition during provisioning.
func Invalidf(format string, args ...any) *Error {
	return &Error{Code: ErrInvalidResource.Code, Message: fmt.Sprintf(format, args...)}
}
