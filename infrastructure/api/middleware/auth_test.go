package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
)

// searchRoutes mirrors the v1 layout: reads and a key-protected search.
func searchRoutes(keys ...string) http.Handler {
	router := chi.NewRouter()
	router.Use(WriteProtect(NewAuthConfigWithKeys(keys)))
	router.Get("/api/v1/services/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Post("/api/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Delete("/api/v1/services/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return router
}

func doRequest(handler http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{"data":{"attributes":{"query":"plombier"}}}`))
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestNewAuthConfigWithKeys_IgnoresBlankKeys(t *testing.T) {
	if NewAuthConfigWithKeys([]string{"", "   "}).Enabled() {
		t.Error("blank keys should leave authentication disabled")
	}

	cfg := NewAuthConfigWithKeys([]string{" secret ", ""})
	if !cfg.Enabled() {
		t.Fatal("expected authentication enabled")
	}
	if !cfg.Valid("secret") {
		t.Error("trimmed key should be accepted")
	}
	if cfg.Valid("") || cfg.Valid(" secret ") {
		t.Error("blank or untrimmed keys should be rejected")
	}
}

func TestWriteProtect_SearchRequiresKey(t *testing.T) {
	handler := searchRoutes("secret", "rotated")

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		status int
	}{
		{"read without key", http.MethodGet, "/api/v1/services/1", "", http.StatusOK},
		{"preflight without key", http.MethodOptions, "/api/v1/search", "", http.StatusMethodNotAllowed},
		{"search without key", http.MethodPost, "/api/v1/search", "", http.StatusUnauthorized},
		{"search with wrong key", http.MethodPost, "/api/v1/search", "nope", http.StatusUnauthorized},
		{"search with key", http.MethodPost, "/api/v1/search", "secret", http.StatusOK},
		{"search with second key", http.MethodPost, "/api/v1/search", "rotated", http.StatusOK},
		{"delete without key", http.MethodDelete, "/api/v1/services/1", "", http.StatusUnauthorized},
		{"delete with key", http.MethodDelete, "/api/v1/services/1", "secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, tt.method, tt.path, tt.key)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestWriteProtect_NoKeysLeavesSearchOpen(t *testing.T) {
	w := doRequest(searchRoutes(), http.MethodPost, "/api/v1/search", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestWriteProtect_ErrorDocument(t *testing.T) {
	handler := searchRoutes("secret")

	tests := []struct {
		name   string
		key    string
		detail string
	}{
		{"missing key", "", "missing " + HeaderAPIKey + " header"},
		{"invalid key", "nope", "invalid api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, http.MethodPost, "/api/v1/search", tt.key)

			if ct := w.Header().Get("Content-Type"); ct != jsonapi.ContentType {
				t.Errorf("Content-Type = %q, want %q", ct, jsonapi.ContentType)
			}
			var doc jsonapi.Document
			if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(doc.Errors) != 1 {
				t.Fatalf("expected 1 error, got %d", len(doc.Errors))
			}
			e := doc.Errors[0]
			if e.Status != "401" {
				t.Errorf("status = %q, want 401", e.Status)
			}
			if !strings.Contains(e.Detail, tt.detail) {
				t.Errorf("detail = %q, want it to mention %q", e.Detail, tt.detail)
			}
			if strings.Contains(e.Detail, "secret") {
				t.Errorf("configured key leaked: %q", e.Detail)
			}
		})
	}
}
