// Package topology maintains each cell's view of its immediate neighbors
// in the cell tree: its single parent and its children, keyed by label,
// refreshed periodically from the Catalog and read through an atomically
// swapped snapshot so routing never blocks on a refresh in flight.
package topology

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
)

// CellRecord describes one cell as published through the Catalog: its
// full dotted path, advertised capabilities, and the transport address
// the Transport Adapter should dial to reach it.
type CellRecord struct {
	Path          string
	Capabilities  map[string]string
	TransportAddr string
	IsMe          bool
}

// Label returns the record's final path component, the key it is
// addressed by from its immediate neighbor.
func (c CellRecord) Label() string {
	labels := envelope.SplitPath(c.Path)
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

// Source lists every cell known to the fabric. It is satisfied by the
// Catalog's ListCells operation; topology depends on this narrow
// interface rather than the full Catalog to avoid a package cycle.
type Source interface {
	ListCells(ctx context.Context) ([]CellRecord, error)
}

type snapshot struct {
	self       CellRecord
	parent     *CellRecord
	children   map[string]CellRecord
	refreshed  time.Time
	refreshErr error
	cellCount  int
}

// Cache is the Topology Cache: a snapshot of a cell's immediate
// neighbors, refreshed from Source on a cadence set by the Periodic
// Runner and read without locking via an atomic pointer swap.
type Cache struct {
	selfPath string
	source   Source
	log      *logger.Logger

	refreshMu sync.Mutex // serializes concurrent Refresh calls
	val       atomic.Pointer[snapshot]
}

// NewCache builds a Topology Cache for the cell at selfPath. The cache is
// empty (no parent, no children) until the first successful Refresh.
func NewCache(selfPath string, source Source, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault()
	}
	c := &Cache{
		selfPath: selfPath,
		source:   source,
		log:      log.Component("topology"),
	}
	c.val.Store(&snapshot{
		self:     CellRecord{Path: selfPath, IsMe: true},
		children: make(map[string]CellRecord),
	})
	return c
}

// Refresh queries Source for the current cell list and atomically
// swaps in a new snapshot of immediate parent/children. Neighbors that
// are not immediately adjacent to selfPath (ancestors-of-ancestors,
// grandchildren) are not tracked; the Router Core only ever needs the
// next hop.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	records, err := c.source.ListCells(ctx)
	if err != nil {
		c.recordFailure(err)
		return cellerrors.CatalogError("failed to list cells from catalog", err)
	}

	next := &snapshot{
		self:      CellRecord{Path: c.selfPath, IsMe: true},
		children:  make(map[string]CellRecord),
		refreshed: time.Now(),
		cellCount: len(records),
	}

	parentPath, hasParent := parentOf(c.selfPath)
	for _, rec := range records {
		switch {
		case rec.Path == c.selfPath:
			rec.IsMe = true
			next.self = rec
		case hasParent && rec.Path == parentPath:
			r := rec
			next.parent = &r
		case isImmediateChild(c.selfPath, rec.Path):
			next.children[rec.Label()] = rec
		}
	}

	c.val.Store(next)
	c.log.Debug("topology refreshed", "cells", len(records), "children", len(next.children), "has_parent", next.parent != nil)
	return nil
}

func (c *Cache) recordFailure(err error) {
	cur := c.val.Load()
	failed := *cur
	failed.refreshErr = err
	c.val.Store(&failed)
}

// Self returns the cell's own record as last observed in the Catalog.
func (c *Cache) Self() CellRecord {
	return c.val.Load().self
}

// SelfPath returns the cell's own full dotted path.
func (c *Cache) SelfPath() string {
	return c.selfPath
}

// Parent returns the cell's immediate parent, if it has one (the root
// cell of the tree does not).
func (c *Cache) Parent() (CellRecord, bool) {
	snap := c.val.Load()
	if snap.parent == nil {
		return CellRecord{}, false
	}
	return *snap.parent, true
}

// Neighbor resolves the next-hop label in direction to a CellRecord,
// mirroring manager.parent_cells.get/child_cells.get in the Python
// original: parents are looked up going Up, children going Down.
func (c *Cache) Neighbor(direction envelope.Direction, label string) (CellRecord, bool) {
	snap := c.val.Load()
	if direction == envelope.Up {
		if snap.parent == nil || snap.parent.Label() != label {
			return CellRecord{}, false
		}
		return *snap.parent, true
	}
	rec, ok := snap.children[label]
	return rec, ok
}

// Children returns a copy of the current child map, keyed by label, for
// use by the Broadcast Engine's fan-out and the Placement Forwarder's
// candidate selection.
func (c *Cache) Children() map[string]CellRecord {
	snap := c.val.Load()
	out := make(map[string]CellRecord, len(snap.children))
	for k, v := range snap.children {
		out[k] = v
	}
	return out
}

// Stats reports cache freshness for the health Monitor.
func (c *Cache) Stats() (lastRefresh time.Time, cellCount int, refreshErr error) {
	snap := c.val.Load()
	return snap.refreshed, snap.cellCount, snap.refreshErr
}

func parentOf(path string) (string, bool) {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "", false
	}
	return path[:idx], true
}

func isImmediateChild(selfPath, candidatePath string) bool {
	prefix := selfPath + "."
	if !strings.HasPrefix(candidatePath, prefix) {
		return false
	}
	return !strings.Contains(candidatePath[len(prefix):], ".")
}
