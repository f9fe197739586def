package engine

import "errors"

// ErrHabitInactive is returned for writes against a failed habit.
var ErrHabitInactive = errors.New("habit is inactive")

// ValidationError rejects user input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
