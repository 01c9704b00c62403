// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the grading and review REST endpoints together with their
// server-sent event streams, keeping HTTP concerns separate from the job
// engines in usecase.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// errorResponse is the wire shape for every error: a human message, a
// stable machine code, and optional details.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details any) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		code = "BAD_REQUEST"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, domain.ErrCloneFailed):
		status = http.StatusUnprocessableEntity
		code = "GIT_ERROR"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		code = "CONFLICT"
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code, Details: details})
}
