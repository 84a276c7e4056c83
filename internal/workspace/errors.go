package workspace

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError carries an HTTP-ish status so the transport layer can map
// engine failures without inspecting messages.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, format string, args ...any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func errAuthRequired() *DomainError {
	return domainError(http.StatusUnauthorized, "AUTH_REQUIRED", "no caller identity")
}

func errForbidden(format string, args ...any) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", format, args...)
}

func errNotFound(format string, args ...any) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", format, args...)
}

func errConflict(format string, args ...any) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", format, args...)
}

func errInvalid(format string, args ...any) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_PAYLOAD", format, args...)
}

// AsDomainError unwraps err into a *DomainError if one is in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
