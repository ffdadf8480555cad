package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// MemCatalog is an in-memory Catalog used by tests and single-binary
// simulations of a small cell tree.
type MemCatalog struct {
	mu        sync.RWMutex
	cells     map[string]topology.CellRecord
	instances map[string]InstanceRecord
}

// NewMemCatalog creates an empty in-memory catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{
		cells:     make(map[string]topology.CellRecord),
		instances: make(map[string]InstanceRecord),
	}
}

// PutCell registers (or replaces) a cell record for ListCells to return.
func (m *MemCatalog) PutCell(rec topology.CellRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[rec.Path] = rec
}

// ListCells returns every registered cell.
func (m *MemCatalog) ListCells(ctx context.Context) ([]topology.CellRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]topology.CellRecord, 0, len(m.cells))
	for _, rec := range m.cells {
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemCatalog) InstanceGetByUUID(ctx context.Context, uuid string) (InstanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.instances[uuid]
	if !ok {
		return InstanceRecord{}, cellerrors.CatalogError("instance not found", ErrNotFound)
	}
	return rec, nil
}

func (m *MemCatalog) InstanceCreate(ctx context.Context, instance InstanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[instance.UUID]; exists {
		return cellerrors.CatalogError("instance already exists", errors.New(instance.UUID))
	}
	m.instances[instance.UUID] = instance
	return nil
}

func (m *MemCatalog) InstanceUpdate(ctx context.Context, instance InstanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[instance.UUID]; !exists {
		return cellerrors.CatalogError("instance not found", ErrNotFound)
	}
	m.instances[instance.UUID] = instance
	return nil
}

func (m *MemCatalog) InstanceDestroy(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, uuid)
	return nil
}

func (m *MemCatalog) InstanceInfoCacheUpdate(ctx context.Context, uuid string, infoCache map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.instances[uuid]
	if !ok {
		return cellerrors.CatalogError("instance not found", ErrNotFound)
	}
	rec.InfoCache = infoCache
	m.instances[uuid] = rec
	return nil
}
