package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDKeepsProxyAssignedID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("X-Request-Id", "edge-7f3a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "edge-7f3a" {
		t.Fatalf("context id = %q, want edge-7f3a", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "edge-7f3a" {
		t.Fatalf("response id = %q, want edge-7f3a", got)
	}
}

func TestWithRequestIDAssignsWhenAbsent(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if seen == "" {
		t.Fatal("expected a generated id in context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Fatalf("response id %q does not match context id %q", got, seen)
	}
}

func TestRequestIDFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if got := RequestIDFromRequest(req); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
