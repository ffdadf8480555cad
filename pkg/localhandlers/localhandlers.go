// Package localhandlers implements the fabric's top-of-tree broadcast
// handlers: instance_update_at_top and instance_destroy_at_top write
// through to the Catalog only when the receiving cell has no parent and
// the broadcast didn't originate here, mirroring
// manager.instance_update/instance_destroy's pair of skip guards.
package localhandlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/go-cells/pkg/broadcast"
	"github.com/opd-ai/go-cells/pkg/catalog"
	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
)

// Handlers owns the Catalog-writing broadcast handlers for a single cell.
type Handlers struct {
	catalog  catalog.Catalog
	selfName string
	log      *logger.Logger
}

// New builds the top-of-tree handler set for cat. selfName is this
// cell's own absolute path, used to recognize a broadcast that
// originated here (the second "skip if routing_path == my own name"
// guard manager.instance_update applies alongside "skip unless at the
// top of the tree").
func New(cat catalog.Catalog, selfName string, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handlers{catalog: cat, selfName: selfName, log: log.Component("localhandlers")}
}

// Register wires this cell's top-of-tree handlers into a broadcast
// Handler map under the method names the Broadcast Engine dispatches on.
func (h *Handlers) Register(handlers map[string]broadcast.Handler) {
	handlers["instance_update_at_top"] = h.InstanceUpdateAtTop
	handlers["instance_destroy_at_top"] = h.InstanceDestroyAtTop
}

// InstanceUpdateAtTop writes the broadcast instance dict to the Catalog,
// but only at the top of the tree; every intermediate cell silently lets
// the broadcast continue upward without touching its own Catalog. It
// mirrors manager.instance_update: skip if this cell has a parent, or
// if the broadcast originated here; otherwise set cell_name from the
// reversed hop trail, write the instance (falling back to a create if
// no record exists yet), then apply info_cache through its own Catalog
// call.
func (h *Handlers) InstanceUpdateAtTop(ctx context.Context, bctx broadcast.Context) error {
	if !bctx.AtTop || bctx.Path == h.selfName {
		return nil
	}
	raw, _ := bctx.Args["instance"].(map[string]interface{})
	if raw == nil {
		return cellerrors.InternalError("instance_update_at_top missing instance argument", nil)
	}
	instance, infoCache, err := instanceFromMap(raw)
	if err != nil {
		return err
	}
	if bctx.Path != "" {
		instance.CellName = envelope.ReversePath(bctx.Path)
	}

	if err := h.catalog.InstanceUpdate(ctx, instance); err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return cellerrors.CatalogError(fmt.Sprintf("failed to write instance %q at top", instance.UUID), err)
		}
		if err := h.catalog.InstanceCreate(ctx, instance); err != nil {
			return cellerrors.CatalogError(fmt.Sprintf("failed to create instance %q at top", instance.UUID), err)
		}
	}

	if infoCache != nil {
		if err := h.catalog.InstanceInfoCacheUpdate(ctx, instance.UUID, infoCache); err != nil {
			return cellerrors.CatalogError(fmt.Sprintf("failed to apply info_cache for instance %q at top", instance.UUID), err)
		}
	}
	return nil
}

// InstanceDestroyAtTop removes the instance from the Catalog, but only at
// the top of the tree. It applies the same origin-skip guard as
// InstanceUpdateAtTop: manager.instance_destroy never writes through for
// a broadcast this cell itself raised.
func (h *Handlers) InstanceDestroyAtTop(ctx context.Context, bctx broadcast.Context) error {
	if !bctx.AtTop || bctx.Path == h.selfName {
		return nil
	}
	uuid, _ := bctx.Args["instance_uuid"].(string)
	if uuid == "" {
		return cellerrors.InternalError("instance_destroy_at_top missing instance_uuid argument", nil)
	}
	if err := h.catalog.InstanceDestroy(ctx, uuid); err != nil {
		return cellerrors.CatalogError(fmt.Sprintf("failed to destroy instance %q at top", uuid), err)
	}
	return nil
}

// instanceFromMap decodes the broadcast "instance" argument into an
// InstanceRecord. info_cache is returned separately rather than folded
// into the record's InfoCache field: the catalog applies it through its
// own InstanceInfoCacheUpdate call, mirroring manager.instance_update's
// separate info_cache write.
func instanceFromMap(raw map[string]interface{}) (catalog.InstanceRecord, map[string]interface{}, error) {
	uuid, _ := raw["uuid"].(string)
	if uuid == "" {
		return catalog.InstanceRecord{}, nil, cellerrors.InternalError("instance dict missing uuid", nil)
	}
	rec := catalog.InstanceRecord{UUID: uuid, State: stringOr(raw["state"], "active")}
	if m, ok := raw["metadata"].(map[string]interface{}); ok {
		rec.Metadata = m
	}
	infoCache, _ := raw["info_cache"].(map[string]interface{})
	return rec, infoCache, nil
}

func stringOr(v interface{}, fallback string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}
