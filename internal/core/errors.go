package core

import (
	"errors"
	"fmt"
)

// Error codes carried by DomainError. The web adapter maps these onto HTTP
// statuses; the core never imports net/http.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeForbidden     = "FORBIDDEN"
	CodeStateConflict = "STATE_CONFLICT"
	CodePersistence   = "PERSISTENCE_ERROR"
)

// DomainError is the single error type the core returns for expected
// failures. Persistence errors keep the driver error in the chain for logs;
// callers should not echo that detail to clients.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(resource string, id any) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func NewForbiddenError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewStateConflictError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeStateConflict, Message: fmt.Sprintf(format, args...)}
}

func NewPersistenceError(op string, err error) *DomainError {
	return &DomainError{Code: CodePersistence, Message: op + " failed", Err: err}
}

// AsDomainError unwraps err to a DomainError if one is in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	if de, ok := AsDomainError(err); ok {
		return de.Code == code
	}
	return false
}

func IsValidationError(err error) bool    { return hasCode(err, CodeValidation) }
func IsNotFoundError(err error) bool      { return hasCode(err, CodeNotFound) }
func IsForbiddenError(err error) bool     { return hasCode(err, CodeForbidden) }
func IsStateConflictError(err error) bool { return hasCode(err, CodeStateConflict) }
func IsPersistenceError(err error) bool   { return hasCode(err, CodePersistence) }
