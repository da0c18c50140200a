package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session handle is unknown or already discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionCompleted is returned when a transition is attempted on a finished session.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz rejects quizzes that cannot be played (no questions, no correct option, no duration).
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrOptionNotFound indicates a selected option index is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNoSelection is returned by advance when no option is pending for the current question.
	ErrNoSelection = errors.New("no option selected")
	// ErrConflict signals a stale version on an optimistic save.
	ErrConflict = errors.New("concurrent update conflict")
)
