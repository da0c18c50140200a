package http

import (
	"errors"
	"net/http"

	"quiz-ranking-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuiz):
		return "invalid_quiz", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionCompleted):
		return "session_completed", http.StatusConflict
	case errors.Is(err, domain.ErrNoSelection):
		return "no_selection", http.StatusBadRequest
	case errors.Is(err, domain.ErrOptionNotFound):
		return "option_not_found", http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return "conflict", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

func toErrorPayload(err error) errorPayload {
	code, _ := errorCode(err)
	return errorPayload{Code: code, Message: err.Error()}
}
