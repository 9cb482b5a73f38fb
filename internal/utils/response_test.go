package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sprinklerprep/internal/models"
)

func TestJSONWritesPayload(t *testing.T) {
	rec := httptest.NewRecorder()

	payload := map[string]any{"foo": "bar"}
	JSON(rec, http.StatusCreated, payload)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Fatalf("expected payload value 'bar', got %v", decoded["foo"])
	}
}

func TestJSONSkipsNilPayload(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusAccepted, nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestErrorWritesErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, http.StatusConflict, "exam_submitted", "exam already submitted")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	var decoded models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded.Code != "exam_submitted" || decoded.Message != "exam already submitted" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestJSONIsNotCacheable(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusOK, map[string]int{"remainingSeconds": 42})

	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("expected cache-control no-store, got %q", cc)
	}
}

func TestInvalid(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"error response": {&models.ErrorResponse{Code: "invalid_page", Message: "page must be a positive integer"}, "invalid_page"},
		"wrapped":        {fmt.Errorf("start: %w", &models.ErrorResponse{Code: "invalid_mode", Message: "unknown mode"}), "invalid_mode"},
		"plain error":    {errors.New("score exceeds total"), "validation_error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			Invalid(rec, tc.err)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			var decoded models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if decoded.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, decoded.Code)
			}
		})
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()

	NoContent(rec)

	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", rec.Code, rec.Body.String())
	}
}
