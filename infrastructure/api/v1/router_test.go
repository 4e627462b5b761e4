package v1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
	v1 "github.com/yukpo/yukpo/infrastructure/api/v1"
	"github.com/yukpo/yukpo/infrastructure/api/v1/dto"
	"github.com/yukpo/yukpo/internal/log"
)

const salonDraft = `{
	"data": {
		"titre": {"type_donnee": "texte", "valeur": "salon de coiffure"},
		"description": {"type_donnee": "texte", "valeur": "coiffure femme et homme, tresses"}
	},
	"gps": "9.7,4.05"
}`

func newTestClient(t *testing.T) *yukpo.Client {
	t.Helper()
	tmpDir := t.TempDir()
	client, err := yukpo.New(
		yukpo.WithDataDir(tmpDir),
		yukpo.WithSQLite(filepath.Join(tmpDir, "test.db")),
		yukpo.WithLogger(log.Discard()),
		yukpo.WithoutSupervisor(),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func serve(t *testing.T, router chi.Router, method, path, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(v1.HeaderUserID, strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// createService stores a service owned by userID and waits for its indexing.
func createService(t *testing.T, client *yukpo.Client, userID int64) string {
	t.Helper()
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", salonDraft, userID)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp dto.ServiceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	client.Indexer.Wait()
	return resp.Data.ID
}

func decodeService(t *testing.T, w *httptest.ResponseRecorder) dto.ServiceResponse {
	t.Helper()
	var resp dto.ServiceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestServicesRouter_Create(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", salonDraft, 7)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeService(t, w)
	if resp.Data.Type != jsonapi.TypeService {
		t.Errorf("type = %q, want %q", resp.Data.Type, jsonapi.TypeService)
	}
	attrs := resp.Data.Attributes
	if attrs.UserID != 7 {
		t.Errorf("user_id = %d, want 7", attrs.UserID)
	}
	if attrs.Data.Title() != "salon de coiffure" {
		t.Errorf("title = %q, want salon de coiffure", attrs.Data.Title())
	}
	if !attrs.IsActive {
		t.Error("expected a new service to be active")
	}
	if attrs.GPS != "9.7,4.05" {
		t.Errorf("gps = %q, want 9.7,4.05", attrs.GPS)
	}
}

func TestServicesRouter_Create_RequiresUser(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", salonDraft, 0)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestServicesRouter_Create_InvalidUserHeader(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewServicesRouter(client).Routes()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(salonDraft))
	req.Header.Set(v1.HeaderUserID, "someone")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServicesRouter_Create_MalformedBody(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{"data":`, 7)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServicesRouter_Get(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodGet, "/"+id, "", 0)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeService(t, w)
	if resp.Data.ID != id {
		t.Errorf("id = %q, want %q", resp.Data.ID, id)
	}
	if resp.Data.Attributes.EmbeddingStatus != "success" {
		t.Errorf("embedding_status = %q, want success", resp.Data.Attributes.EmbeddingStatus)
	}
}

func TestServicesRouter_Get_NotFound(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewServicesRouter(client).Routes()

	for _, path := range []string{"/99999", "/abc", "/0"} {
		w := serve(t, router, http.MethodGet, path, "", 0)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want %d", path, w.Code, http.StatusNotFound)
		}

		var doc jsonapi.Document
		if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
			t.Fatalf("decode error document: %v", err)
		}
		if len(doc.Errors) != 1 || doc.Errors[0].Status != "404" {
			t.Errorf("GET %s: unexpected error document %+v", path, doc)
		}
	}
}

func TestServicesRouter_DeactivateThenReactivate(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/"+id+"/deactivate", "", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if decodeService(t, w).Data.Attributes.IsActive {
		t.Error("expected the service to be inactive")
	}

	w = serve(t, router, http.MethodPost, "/"+id+"/reactivate", `{"data":{"type":"reactivation","attributes":{"days":7}}}`, 7)
	if w.Code != http.StatusOK {
		t.Fatalf("reactivate: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	attrs := decodeService(t, w).Data.Attributes
	if !attrs.IsActive {
		t.Error("expected the service to be active again")
	}
	if attrs.ActiveDays != 7 {
		t.Errorf("active_days = %d, want 7", attrs.ActiveDays)
	}
	if attrs.AutoDeactivateAt == nil {
		t.Error("expected an auto deactivation date")
	}
}

func TestServicesRouter_Reactivate_InvalidDays(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/"+id+"/reactivate", `{"data":{"attributes":{"days":0}}}`, 7)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServicesRouter_OwnerOnly(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	tests := []struct {
		name   string
		method string
		path   string
		userID int64
		want   int
	}{
		{"deactivate by another user", http.MethodPost, "/" + id + "/deactivate", 8, http.StatusForbidden},
		{"delete by another user", http.MethodDelete, "/" + id, 8, http.StatusForbidden},
		{"delete anonymously", http.MethodDelete, "/" + id, 0, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, tt.method, tt.path, "", tt.userID)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestServicesRouter_Delete(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodDelete, "/"+id, "", 7)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusNoContent, w.Body.String())
	}

	w = serve(t, router, http.MethodGet, "/"+id, "", 0)
	if w.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestServicesRouter_ReviewAndScore(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/"+id+"/reviews", `{"data":{"type":"review","attributes":{"rating":5,"comment":"parfait"}}}`, 8)
	if w.Code != http.StatusCreated {
		t.Fatalf("review: status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var score dto.ScoreResponse
	if err := json.NewDecoder(w.Body).Decode(&score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if score.Data.ID != id {
		t.Errorf("score id = %q, want %q", score.Data.ID, id)
	}
	if score.Data.Attributes.Rating <= 0 {
		t.Errorf("rating = %f, want > 0", score.Data.Attributes.Rating)
	}

	w = serve(t, router, http.MethodGet, "/"+id+"/score", "", 0)
	if w.Code != http.StatusOK {
		t.Fatalf("score: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var fetched dto.ScoreResponse
	if err := json.NewDecoder(w.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.Data.Attributes.Rating != score.Data.Attributes.Rating {
		t.Errorf("fetched rating = %f, want %f", fetched.Data.Attributes.Rating, score.Data.Attributes.Rating)
	}
}

func TestServicesRouter_Review_Validation(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	tests := []struct {
		name   string
		path   string
		body   string
		userID int64
		want   int
	}{
		{"anonymous", "/" + id + "/reviews", `{"data":{"attributes":{"rating":4}}}`, 0, http.StatusUnauthorized},
		{"rating out of range", "/" + id + "/reviews", `{"data":{"attributes":{"rating":9}}}`, 8, http.StatusBadRequest},
		{"unknown service", "/99999/reviews", `{"data":{"attributes":{"rating":4}}}`, 8, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, http.MethodPost, tt.path, tt.body, tt.userID)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestServicesRouter_Interaction(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewServicesRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/"+id+"/interactions", `{"data":{"type":"interaction","attributes":{"kind":"call"}}}`, 8)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = serve(t, router, http.MethodPost, "/"+id+"/interactions", `{"data":{"attributes":{"kind":"telepathy"}}}`, 8)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRequestsRouter_CreateThenFind(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewRequestsRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{"service":`+salonDraft+`}`, 7)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var created dto.RequestResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.Attributes.Intent != "creation_service" {
		t.Errorf("intent = %q, want creation_service", created.Data.Attributes.Intent)
	}
	if created.Data.Attributes.Service == nil {
		t.Fatal("expected the created service in the response")
	}
	client.Indexer.Wait()

	w = serve(t, router, http.MethodPost, "/", `{"input":{"texte":"salon de coiffure","intention":"recherche_besoin","gps_mobile":"4.05,9.7"}}`, 8)
	if w.Code != http.StatusOK {
		t.Fatalf("find: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var found dto.RequestResponse
	if err := json.NewDecoder(w.Body).Decode(&found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if found.Data.Attributes.Intent != "recherche_besoin" {
		t.Errorf("intent = %q, want recherche_besoin", found.Data.Attributes.Intent)
	}
	if len(found.Data.Attributes.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(found.Data.Attributes.Results))
	}
	if found.Data.Attributes.Results[0].ID != created.Data.Attributes.Service.ID {
		t.Errorf("result id = %q, want %q", found.Data.Attributes.Results[0].ID, created.Data.Attributes.Service.ID)
	}
}

func TestRequestsRouter_EmptyRequest(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewRequestsRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{}`, 7)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestRequestsRouter_AssistanceWithoutModel(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewRequestsRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{"input":{"texte":"bonjour","intention":"assistance_generale"}}`, 7)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}
