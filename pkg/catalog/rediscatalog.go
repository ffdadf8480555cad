package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/topology"
)

const (
	cellsHashKey      = "cells:topology"
	instanceKeyPrefix = "cells:instance:"
)

// RedisCatalog is a Catalog backed by Redis: the cell topology lives in
// a single hash (path -> JSON record), and each instance lives under its
// own "cells:instance:<uuid>" key so individual updates don't require
// reading or rewriting the whole set.
type RedisCatalog struct {
	client *redis.Client
}

// NewRedisCatalog wraps an already-configured *redis.Client.
func NewRedisCatalog(client *redis.Client) *RedisCatalog {
	return &RedisCatalog{client: client}
}

func (r *RedisCatalog) PutCell(ctx context.Context, rec topology.CellRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return cellerrors.InternalError("failed to encode cell record", err)
	}
	if err := r.client.HSet(ctx, cellsHashKey, rec.Path, body).Err(); err != nil {
		return cellerrors.CatalogError("failed to write cell record", err)
	}
	return nil
}

func (r *RedisCatalog) ListCells(ctx context.Context) ([]topology.CellRecord, error) {
	raw, err := r.client.HGetAll(ctx, cellsHashKey).Result()
	if err != nil {
		return nil, cellerrors.CatalogError("failed to list cells", err)
	}
	cells := make([]topology.CellRecord, 0, len(raw))
	for path, body := range raw {
		var rec topology.CellRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, cellerrors.InternalError("failed to decode cell record for "+path, err)
		}
		cells = append(cells, rec)
	}
	return cells, nil
}

func (r *RedisCatalog) InstanceGetByUUID(ctx context.Context, uuid string) (InstanceRecord, error) {
	body, err := r.client.Get(ctx, instanceKeyPrefix+uuid).Bytes()
	if errors.Is(err, redis.Nil) {
		return InstanceRecord{}, cellerrors.CatalogError("instance not found", ErrNotFound)
	}
	if err != nil {
		return InstanceRecord{}, cellerrors.CatalogError("failed to fetch instance", err)
	}
	var rec InstanceRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return InstanceRecord{}, cellerrors.InternalError("failed to decode instance record", err)
	}
	return rec, nil
}

func (r *RedisCatalog) InstanceCreate(ctx context.Context, instance InstanceRecord) error {
	return r.put(ctx, instance)
}

func (r *RedisCatalog) InstanceUpdate(ctx context.Context, instance InstanceRecord) error {
	exists, err := r.client.Exists(ctx, instanceKeyPrefix+instance.UUID).Result()
	if err != nil {
		return cellerrors.CatalogError("failed to check instance existence", err)
	}
	if exists == 0 {
		return cellerrors.CatalogError("instance not found", ErrNotFound)
	}
	return r.put(ctx, instance)
}

func (r *RedisCatalog) InstanceDestroy(ctx context.Context, uuid string) error {
	if err := r.client.Del(ctx, instanceKeyPrefix+uuid).Err(); err != nil {
		return cellerrors.CatalogError("failed to delete instance", err)
	}
	return nil
}

func (r *RedisCatalog) InstanceInfoCacheUpdate(ctx context.Context, uuid string, infoCache map[string]interface{}) error {
	instance, err := r.InstanceGetByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	instance.InfoCache = infoCache
	return r.put(ctx, instance)
}

func (r *RedisCatalog) put(ctx context.Context, instance InstanceRecord) error {
	body, err := json.Marshal(instance)
	if err != nil {
		return cellerrors.InternalError("failed to encode instance record", err)
	}
	if err := r.client.Set(ctx, instanceKeyPrefix+instance.UUID, body, 0).Err(); err != nil {
		return cellerrors.CatalogError("failed to write instance record", err)
	}
	return nil
}
