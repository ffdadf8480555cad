package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opd-ai/go-cells/pkg/catalog"
	"github.com/opd-ai/go-cells/pkg/topology"
)

type fakeSource struct {
	records []topology.CellRecord
}

func (f fakeSource) ListCells(ctx context.Context) ([]topology.CellRecord, error) {
	return f.records, nil
}

func newTestServer(t *testing.T) (*Server, *catalog.MemCatalog) {
	t.Helper()
	cat := catalog.NewMemCatalog()
	if err := cat.InstanceCreate(context.Background(), catalog.InstanceRecord{UUID: "uuid-1", State: "active"}); err != nil {
		t.Fatalf("seed instance: %v", err)
	}
	topo := topology.NewCache("a.b", fakeSource{records: []topology.CellRecord{
		{Path: "a.b"}, {Path: "a.b.c"},
	}}, nil)
	if err := topo.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return New(cat, topo, nil), cat
}

func TestServerShowAugmentsBandwidth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/servers/a.b-uuid-1", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["server"]["RAX-SERVER:bandwidth"]; !ok {
		t.Fatal("expected RAX-SERVER:bandwidth field in response")
	}
}

func TestServerShowUnknownInstanceIsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/servers/a.b-missing", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestServicesIndexListsSelfAndChildren(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	var body map[string][]map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["services"]) != 2 {
		t.Fatalf("expected 2 services (self + one child), got %d", len(body["services"]))
	}
}

func TestServiceEnableDisable(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/services/a.b-router/disable", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	var body map[string]map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["service"]["status"] != "disabled" {
		t.Fatalf("expected disabled status, got %v", body["service"]["status"])
	}
}
