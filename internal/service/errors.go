package service

import (
	"errors"
	"strings"

	"task-calendar/internal/repository"
)

// ErrNotFound is returned for missing resources and for resources owned by
// someone else; callers cannot tell the two apart.
var ErrNotFound = repository.ErrNotFound

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is every problem found in one input.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}

func invalid(field, message string) error {
	return ValidationErrors{{Field: field, Message: message}}
}

// AsValidation extracts validation problems from err.
func AsValidation(err error) (ValidationErrors, bool) {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many, true
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return ValidationErrors{one}, true
	}
	return nil, false
}
