package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError is an error with an HTTP status. It is written to clients as
// {"error": "<message>"}.
type AppError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// BadRequest creates a 400 error.
func BadRequest(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: msg}
}

// BadRequestf creates a 400 error with a formatted message.
func BadRequestf(format string, args ...any) *AppError {
	return BadRequest(fmt.Sprintf(format, args...))
}

// NotFound creates a 404 error.
func NotFound(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: msg}
}

// Internal creates a 500 error.
func Internal(msg string) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: msg}
}

// Unavailable creates a 503 error.
func Unavailable(msg string) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Message: msg}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err *AppError) {
	writeJSON(w, err.Status, errorBody{Error: err.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
