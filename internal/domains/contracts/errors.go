package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Typed failures surfaced by every mutating operation. Callers match with
// errors.Is; raw transport status codes never cross this boundary.
var (
	ErrDuplicateRequest  = errors.New("a pending connection request already exists")
	ErrInvalidTransition = errors.New("request is not in a state that allows this action")
	ErrAlreadyBlocked    = errors.New("user is already blocked")
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("remote state changed concurrently")
	ErrValidation        = errors.New("invalid input")
	ErrNetwork           = errors.New("network failure")
	ErrServer            = errors.New("server failure")
)

const (
	ErrorCategoryAPI     = "api"
	ErrorCategoryStorage = "storage"
	ErrorCategoryNetwork = "network"
)

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryStorage:
		return ErrorCategoryStorage
	case ErrorCategoryNetwork:
		return ErrorCategoryNetwork
	default:
		return ErrorCategoryAPI
	}
}

func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeErrorCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	if errors.Is(err, ErrNetwork) {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryAPI
}

// FailureCode maps a typed failure onto the wire error code vocabulary used
// by the remote service envelope.
func FailureCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateRequest):
		return "DuplicateRequest"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrAlreadyBlocked):
		return "AlreadyBlocked"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNetwork):
		return "NetworkError"
	case errors.Is(err, ErrServer):
		return "ServerError"
	}
	return "ServerError"
}

// FailureFromCode is the inverse mapping applied to remote error envelopes.
func FailureFromCode(code string) error {
	switch strings.TrimSpace(code) {
	case "DuplicateRequest":
		return ErrDuplicateRequest
	case "InvalidTransition", "AlreadyProcessed":
		return ErrInvalidTransition
	case "AlreadyBlocked":
		return ErrAlreadyBlocked
	case "NotFound":
		return ErrNotFound
	case "Conflict":
		return ErrConflict
	case "ValidationError":
		return ErrValidation
	}
	return nil
}
