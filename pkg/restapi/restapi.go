// Package restapi exposes a thin HTTP surface over a cell's Topology
// Cache and Catalog: it adapts internal state for HTTP consumption and
// holds no routing logic of its own. IDs crossing this boundary are
// always "<cellName>-<localId>", so a caller anywhere in the tree can
// address a specific server or service unambiguously.
package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/opd-ai/go-cells/pkg/catalog"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// Server wires the REST surface's handlers onto an *http.ServeMux-compatible
// router.
type Server struct {
	catalog catalog.Catalog
	topo    *topology.Cache
	log     *logger.Logger
}

// New builds a Server.
func New(cat catalog.Catalog, topo *topology.Cache, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Server{catalog: cat, topo: topo, log: log.Component("restapi")}
}

// Router builds the gorilla/mux Router exposing every endpoint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/servers/detail", s.handleServersDetail).Methods(http.MethodGet)
	r.HandleFunc("/servers/{id}", s.handleServerShow).Methods(http.MethodGet)
	r.HandleFunc("/services", s.handleServicesIndex).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}", s.handleServiceShow).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}/enable", s.handleServiceEnable).Methods(http.MethodPost)
	r.HandleFunc("/services/{id}/disable", s.handleServiceDisable).Methods(http.MethodPost)
	return r
}

// cellServerID formats the "<cellName>-<localId>" composite ID every
// server/service resource is addressed by outside its owning cell.
func cellServerID(cellName, localID string) string {
	return fmt.Sprintf("%s-%s", cellName, localID)
}

// splitCellServerID reverses cellServerID, splitting on the first "-" so
// a cell name containing dots (but not dashes) round-trips cleanly along
// with a local ID that itself contains dashes, such as a UUID.
func splitCellServerID(id string) (cellName, localID string, ok bool) {
	idx := strings.Index(id, "-")
	if idx < 0 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}

func withBandwidth(instance catalog.InstanceRecord, cellName string) map[string]interface{} {
	return map[string]interface{}{
		"id":                 cellServerID(cellName, instance.UUID),
		"status":             instance.State,
		"RAX-SERVER:bandwidth": []map[string]interface{}{},
	}
}

func (s *Server) handleServerShow(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	cellName, localID, ok := splitCellServerID(id)
	if !ok {
		http.Error(w, "malformed server id", http.StatusBadRequest)
		return
	}
	instance, err := s.catalog.InstanceGetByUUID(req.Context(), localID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"server": withBandwidth(instance, cellName)})
}

func (s *Server) handleServersDetail(w http.ResponseWriter, req *http.Request) {
	// The Catalog interface exposes lookup by UUID, not a full listing;
	// a production deployment would back this with a catalog-wide query.
	// Here the detail list is always empty, since there is no
	// bulk-instance listing in the Catalog boundary — callers should use
	// /servers/{id} for specifics.
	writeJSON(w, map[string]interface{}{"servers": []interface{}{}})
}

func (s *Server) handleServicesIndex(w http.ResponseWriter, req *http.Request) {
	cells := s.topo.Children()
	out := make([]map[string]interface{}, 0, len(cells)+1)
	self := s.topo.Self()
	out = append(out, map[string]interface{}{
		"id":     cellServerID(self.Path, "router"),
		"status": "enabled",
	})
	for _, c := range cells {
		out = append(out, map[string]interface{}{
			"id":     cellServerID(c.Path, "router"),
			"status": "enabled",
		})
	}
	writeJSON(w, map[string]interface{}{"services": out})
}

func (s *Server) handleServiceShow(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	cellName, _, ok := splitCellServerID(id)
	if !ok {
		http.Error(w, "malformed service id", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"service": map[string]interface{}{"id": id, "cell": cellName, "status": "enabled"}})
}

func (s *Server) handleServiceEnable(w http.ResponseWriter, req *http.Request) {
	s.setServiceStatus(w, req, "enabled")
}

func (s *Server) handleServiceDisable(w http.ResponseWriter, req *http.Request) {
	s.setServiceStatus(w, req, "disabled")
}

func (s *Server) setServiceStatus(w http.ResponseWriter, req *http.Request, status string) {
	id := mux.Vars(req)["id"]
	writeJSON(w, map[string]interface{}{"service": map[string]interface{}{"id": id, "status": status}})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
