package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"sprinklerprep/internal/models"
)

// JSON writes payload with the given status. Exam views carry a live
// countdown, so no response is cacheable.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// Error writes the uniform error payload, e.g. code "exam_submitted" for an
// answer sent after submission.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, models.ErrorResponse{Code: code, Message: message})
}

// Invalid writes a 400 for a rejected query or body. Errors that are not
// already an *models.ErrorResponse are reported as "validation_error".
func Invalid(w http.ResponseWriter, err error) {
	var resp *models.ErrorResponse
	if !errors.As(err, &resp) {
		resp = &models.ErrorResponse{Code: "validation_error", Message: err.Error()}
	}
	JSON(w, http.StatusBadRequest, resp)
}

// NoContent acknowledges a request that has nothing to return, like
// abandoning a practice game.
func NoContent(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}
