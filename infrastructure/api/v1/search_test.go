package v1_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
	v1 "github.com/yukpo/yukpo/infrastructure/api/v1"
	"github.com/yukpo/yukpo/infrastructure/api/v1/dto"
)

func decodeSearch(t *testing.T, body []byte) dto.SearchResponse {
	t.Helper()
	var resp dto.SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v; body: %s", err, body)
	}
	return resp
}

func TestSearchRouter_FindsService(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	router := v1.NewSearchRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{"data":{"type":"search","attributes":{"query":"salon de coiffure","gps_mobile":"4.05,9.7"}}}`, 8)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeSearch(t, w.Body.Bytes())
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Data))
	}
	match := resp.Data[0]
	if match.Type != jsonapi.TypeMatch {
		t.Errorf("type = %q, want %q", match.Type, jsonapi.TypeMatch)
	}
	if match.ID != id {
		t.Errorf("id = %q, want %q", match.ID, id)
	}
	if match.Attributes.Title != "salon de coiffure" {
		t.Errorf("title = %q, want salon de coiffure", match.Attributes.Title)
	}
	if match.Attributes.FinalScore <= 0 {
		t.Errorf("final_score = %f, want > 0", match.Attributes.FinalScore)
	}
	if match.Attributes.DistanceKM == nil {
		t.Error("expected a distance when both locations are known")
	}
	if resp.Meta == nil || (*resp.Meta)["count"] != float64(1) {
		t.Errorf("expected count 1 in meta, got %v", resp.Meta)
	}
}

func TestSearchRouter_ZoneExcludesFarServices(t *testing.T) {
	client := newTestClient(t)
	createService(t, client, 7)
	router := v1.NewSearchRouter(client).Routes()

	// A 5 km circle around Paris; the service sits in Douala.
	body := `{"data":{"type":"search","attributes":{"query":"salon de coiffure","zone_gps":{"centre":[2.35,48.85],"rayon":5}}}}`
	w := serve(t, router, http.MethodPost, "/", body, 8)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if resp := decodeSearch(t, w.Body.Bytes()); len(resp.Data) != 0 {
		t.Errorf("expected no match outside the zone, got %d", len(resp.Data))
	}
}

func TestSearchRouter_DeactivatedServicesAreHidden(t *testing.T) {
	client := newTestClient(t)
	id := createService(t, client, 7)
	services := v1.NewServicesRouter(client).Routes()
	router := v1.NewSearchRouter(client).Routes()

	if w := serve(t, services, http.MethodPost, "/"+id+"/deactivate", "", 7); w.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d; body: %s", w.Code, w.Body.String())
	}

	w := serve(t, router, http.MethodPost, "/", `{"data":{"attributes":{"query":"salon de coiffure"}}}`, 8)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if resp := decodeSearch(t, w.Body.Bytes()); len(resp.Data) != 0 {
		t.Errorf("expected deactivated service to be hidden, got %d matches", len(resp.Data))
	}
}

func TestSearchRouter_EmptyCatalog(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewSearchRouter(client).Routes()

	w := serve(t, router, http.MethodPost, "/", `{"data":{"attributes":{"query":"plombier"}}}`, 0)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if resp := decodeSearch(t, w.Body.Bytes()); len(resp.Data) != 0 {
		t.Errorf("expected no match, got %d", len(resp.Data))
	}
}

func TestSearchRouter_BadRequests(t *testing.T) {
	client := newTestClient(t)
	router := v1.NewSearchRouter(client).Routes()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"data":`},
		{"invalid gps_mobile", `{"data":{"attributes":{"query":"plombier","gps_mobile":"here"}}}`},
		{"zone centre without latitude", `{"data":{"attributes":{"query":"plombier","zone_gps":{"centre":[2.35],"rayon":5}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, http.MethodPost, "/", tt.body, 0)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}
