package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stocklens/stocklens/internal/core/checker"
	apperrors "github.com/stocklens/stocklens/internal/errors"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestAPIRoutesAnswerErrorsWithoutDeps(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/retailers"},
		{http.MethodGet, "/v1/counters"},
		{http.MethodPost, "/v1/poll"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: expected status 500, got %d", tc.method, tc.path, rec.Code)
		}

		var body apperrors.HTTPErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s %s: failed to decode error response: %v", tc.method, tc.path, err)
		}
		if body.Error.Code != "INTERNAL_ERROR" {
			t.Fatalf("%s %s: expected error code INTERNAL_ERROR, got %s", tc.method, tc.path, body.Error.Code)
		}
	}
}

func TestCountersEndpoint(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{Checker: &checker.CandidateChecker{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/counters", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body CountersResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode counters response: %v", err)
	}
	if len(body.Counters) != 0 {
		t.Fatalf("expected no counters before any batch, got %v", body.Counters)
	}
}

func TestPollRequiresPost(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/poll", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
