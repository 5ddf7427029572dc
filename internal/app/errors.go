package app

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure for callers; the HTTP layer maps each kind to a status.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindPrecondition ErrorKind = "precondition"
	KindNotFound     ErrorKind = "not_found"
	KindGeneration   ErrorKind = "generation"
	KindPersistence  ErrorKind = "persistence"
	KindForbidden    ErrorKind = "forbidden"
)

type DomainError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func domainError(kind ErrorKind, status int, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(KindValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func preconditionError(message string) *DomainError {
	return domainError(KindPrecondition, http.StatusConflict, "PRECONDITION_FAILED", message, nil)
}

func notFoundError(message string) *DomainError {
	return domainError(KindNotFound, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// generationError hides the generator's failure behind a generic message; cause is kept for logs.
func generationError(message string, cause error) *DomainError {
	err := domainError(KindGeneration, http.StatusBadGateway, "GENERATION_FAILED", message, nil)
	err.cause = cause
	return err
}

func persistenceError(cause error) *DomainError {
	err := domainError(KindPersistence, http.StatusInternalServerError, "PERSISTENCE_ERROR", "A storage error occurred. Please try again.", nil)
	err.cause = cause
	return err
}

func forbiddenError() *DomainError {
	return domainError(KindForbidden, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action", nil)
}
