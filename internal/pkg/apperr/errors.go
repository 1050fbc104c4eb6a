package apperr

import (
	"errors"
	"strings"
)

// Business Error Codes
const (
	CodeSuccess       = 0
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeInternalError = 500
	CodeDatabaseError = 1001
	CodeCacheError    = 1002
	CodeRejected      = 2001 // validation or policy rejection of a post
)

// Kind classifies errors so callers can log and count them differently.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindPolicy     Kind = "policy"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
)

// Business Errors
var (
	ErrNotFound          = NewAppError(CodeNotFound, KindNotFound, "not found")
	ErrForumNotFound     = NewAppError(CodeNotFound, KindNotFound, "forum not found")
	ErrTopicNotFound     = NewAppError(CodeNotFound, KindNotFound, "topic not found")
	ErrReplyNotFound     = NewAppError(CodeNotFound, KindNotFound, "reply not found")
	ErrUserNotFound      = NewAppError(CodeNotFound, KindNotFound, "user not found")
	ErrInvalidParams     = NewAppError(CodeBadRequest, KindValidation, "invalid parameters")
	ErrInvalidTransition = NewAppError(CodeConflict, KindConflict, "status transition not allowed")
	ErrUnauthorized      = NewAppError(CodeUnauthorized, KindPermission, "unauthorized")
	ErrForbidden         = NewAppError(CodeForbidden, KindPermission, "forbidden")
	ErrOrphan            = NewAppError(CodeInternalError, KindStorage, "dangling parent in ancestor chain")
)

// AppError Application Error with code and message
type AppError struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the storage cause
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on code and message so wrapped sentinels compare equal
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewAppError Create new application error
func NewAppError(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Forbidden permission failure with a specific message
func Forbidden(message string) *AppError {
	return NewAppError(CodeForbidden, KindPermission, message)
}

// Storage wraps an underlying store failure. The cause stays out of the
// client-facing message.
func Storage(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{Code: CodeDatabaseError, Kind: KindStorage, Message: "storage failure", cause: err}
}

// WrapError Wrap error with code
func WrapError(err error, code int) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{
		Code:    code,
		Kind:    KindStorage,
		Message: err.Error(),
	}
}

// FieldError one named, human-readable problem with a submission
type FieldError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors accumulates validation and policy problems so that all of them can
// be reported at once.
type Errors struct {
	List []FieldError `json:"errors"`
}

// Add appends a problem
func (e *Errors) Add(kind Kind, code, message string) {
	e.List = append(e.List, FieldError{Kind: kind, Code: code, Message: message})
}

// Validation appends a validation problem
func (e *Errors) Validation(code, message string) {
	e.Add(KindValidation, code, message)
}

// Policy appends a policy rejection
func (e *Errors) Policy(code, message string) {
	e.Add(KindPolicy, code, message)
}

// Has reports whether a problem with this code was recorded
func (e *Errors) Has(code string) bool {
	for _, fe := range e.List {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// Empty 无错误
func (e *Errors) Empty() bool {
	return e == nil || len(e.List) == 0
}

// Err returns nil when nothing was recorded
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.List))
	for _, fe := range e.List {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// KindOf reports the classification of any error
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var list *Errors
	if errors.As(err, &list) {
		for _, fe := range list.List {
			if fe.Kind == KindValidation {
				return KindValidation
			}
		}
		return KindPolicy
	}
	return KindStorage
}
