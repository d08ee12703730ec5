package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := authMiddleware("secret", okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/ask", "", http.StatusUnauthorized},
		{"wrong token", "/ask", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/ask", "Bearer secret", http.StatusOK},
		{"health bypasses auth", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabledWithoutKey(t *testing.T) {
	h := authMiddleware("", okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", nil))
	if w.Code != http.StatusOK {
		t.Errorf("auth must be disabled with an empty key, got %d", w.Code)
	}
}

func TestCORSMiddlewareAllowsPatch(t *testing.T) {
	h := corsMiddleware("https://app.example.com", okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/entities/e1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", w.Code)
	}
	methods := w.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"PATCH", "DELETE", "GET", "POST"} {
		if !containsMethod(methods, m) {
			t.Errorf("method %s missing from %q", m, methods)
		}
	}
}

func containsMethod(header, method string) bool {
	for _, m := range strings.Split(header, ",") {
		if strings.TrimSpace(m) == method {
			return true
		}
	}
	return false
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ask", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic must become a 500, got %d", w.Code)
	}
}
