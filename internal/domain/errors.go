package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an admin action runs without a stored token.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrGameNotFound is returned when a game id is not in the admin's game list.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameIDNotFound is returned when a session has no game id recorded locally.
	ErrGameIDNotFound = errors.New("game ID not found, return to dashboard and try again")
	// ErrSessionAlreadyActive indicates a START mutation for a game that is already running.
	ErrSessionAlreadyActive = errors.New("game already has an active session")
	// ErrNoActiveSession indicates an END mutation for a game that is not running.
	ErrNoActiveSession = errors.New("game doesn't have an active session")
	// ErrPlayerNotJoined is returned when no player id is known locally.
	ErrPlayerNotJoined = errors.New("player has not joined a session")
	// ErrInvalidQuestion indicates a question payload that could not be decoded.
	ErrInvalidQuestion = errors.New("invalid question data")
	// ErrNotAcceptingAnswers is returned when a selection arrives outside the active state.
	ErrNotAcceptingAnswers = errors.New("question is not accepting answers")
	// ErrAlreadySubmitted is returned when a selection arrives after the answer was sent.
	ErrAlreadySubmitted = errors.New("answer already submitted")
	// ErrUnknownAnswer is returned when a selection is not one of the question's answers.
	ErrUnknownAnswer = errors.New("answer is not an option for this question")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
