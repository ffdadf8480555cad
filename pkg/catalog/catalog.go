// Package catalog defines the Catalog boundary the Service API Bridge,
// the top-of-tree broadcast handlers and the REST adapter read and write
// through, plus two concrete
// backends: an in-memory catalog for tests and single-binary
// simulations, and a Redis-backed catalog for a real deployment.
package catalog

import (
	"context"

	"github.com/opd-ai/go-cells/pkg/topology"
)

// InstanceRecord is the catalog's view of a compute instance: enough
// fields to exercise instance_update/instance_destroy broadcasts and to
// answer instanceGetByUuid lookups from the Service API Bridge.
type InstanceRecord struct {
	UUID           string                 `json:"uuid"`
	CellName       string                 `json:"cell_name"`
	InstanceType   map[string]interface{} `json:"instance_type,omitempty"`
	SecurityGroups []string               `json:"security_groups,omitempty"`
	Volumes        []string               `json:"volumes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	InfoCache      map[string]interface{} `json:"info_cache,omitempty"`
	State          string                 `json:"state"`
}

// Catalog is the fabric's external system of record: cell topology and
// instance state. It is intentionally narrow — the Router Core and
// Broadcast Engine never touch it directly; the Service API Bridge, the
// top-of-tree broadcast handlers, the REST adapter, the Topology Cache
// (through ListCells) and the create-local closure cmd/cell-router hands
// the Placement Forwarder do.
type Catalog interface {
	// ListCells satisfies topology.Source for the Topology Cache.
	ListCells(ctx context.Context) ([]topology.CellRecord, error)

	InstanceGetByUUID(ctx context.Context, uuid string) (InstanceRecord, error)
	InstanceCreate(ctx context.Context, instance InstanceRecord) error
	InstanceUpdate(ctx context.Context, instance InstanceRecord) error
	InstanceDestroy(ctx context.Context, uuid string) error
	InstanceInfoCacheUpdate(ctx context.Context, uuid string, infoCache map[string]interface{}) error
}

// ErrNotFound is returned when a lookup finds nothing, letting callers
// distinguish "not found" from a backend failure via errors.Is.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "catalog: not found" }
