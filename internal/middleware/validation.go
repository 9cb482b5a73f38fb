package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sprinklerprep/internal/utils"
)

// MaxBodyBytes bounds every validated body. The largest is a completion
// report listing the question ids of a full exam.
const MaxBodyBytes = 256 << 10

type bodyKey struct{}

// Validator is implemented by the request bodies of the exam, practice and
// progress routes (answers, visibility changes, submissions, completions).
type Validator interface {
	Validate() error
}

// ValidateRequest decodes the JSON body into a new T and rejects the request
// with 400 unless it passes T's Validate. T is a pointer type such as
// *models.AnswerRequest. Bodies over MaxBodyBytes get 413.
func ValidateRequest[T interface {
	*B
	Validator
}, B any]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := T(new(B))

			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err := dec.Decode(req); err != nil {
				var tooLarge *http.MaxBytesError
				switch {
				case errors.As(err, &tooLarge):
					utils.Error(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
				case errors.Is(err, io.EOF):
					utils.Error(w, http.StatusBadRequest, "empty_body", "request body is required")
				default:
					utils.Error(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
				}
				return
			}

			if err := req.Validate(); err != nil {
				utils.Invalid(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, req)))
		})
	}
}

// GetValidatedRequest returns the body stored by ValidateRequest. It panics
// when the route was not wrapped with ValidateRequest for the same type.
func GetValidatedRequest[T any](r *http.Request) T {
	return r.Context().Value(bodyKey{}).(T)
}
