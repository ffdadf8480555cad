package envelope

// instanceUpdateStripFields are removed from an instance dict before it
// is placed in an instance_update broadcast: cell_name is replaced by the
// fields below it, and the rest are either cell-local or too large to
// usefully replicate.
var instanceUpdateStripFields = []string{
	"id",
	"security_groups",
	"instance_type",
	"volumes",
	"cell_name",
}

// FormInstanceUpdateBroadcast builds the broadcast_message args for an
// instance_update call: it sanitizes the instance dict the same way the
// cell that owns the instance would before publishing it to the rest of
// the tree, then wraps it with FormBroadcast.
//
// instance is mutated defensively via a shallow copy; the caller's map is
// left untouched.
func FormInstanceUpdateBroadcast(direction Direction, path string, hopCount int, instance map[string]interface{}) Broadcast {
	sanitized := sanitizeInstance(instance)
	return FormBroadcast(direction, path, hopCount, false, "instance_update_at_top", map[string]interface{}{
		"instance": sanitized,
	})
}

// FormInstanceDestroyBroadcast builds the broadcast_message args for an
// instance_destroy call, which carries only the instance uuid: the
// remote cells have no other state worth replicating for a deleted
// instance.
func FormInstanceDestroyBroadcast(direction Direction, path string, hopCount int, instanceUUID string) Broadcast {
	return FormBroadcast(direction, path, hopCount, false, "instance_destroy_at_top", map[string]interface{}{
		"instance_uuid": instanceUUID,
	})
}

func sanitizeInstance(instance map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(instance))
	for k, v := range instance {
		out[k] = v
	}
	for _, field := range instanceUpdateStripFields {
		delete(out, field)
	}
	if metadata, ok := out["metadata"]; ok {
		out["metadata"] = normalizeMetadata(metadata)
	}
	if cache, ok := out["info_cache"]; ok {
		out["info_cache"] = stripInfoCacheID(cache)
	}
	return out
}

// normalizeMetadata converts a metadata list of {key, value} items (the
// shape returned by some lookup paths) into the flat map form broadcast
// handlers expect. A value that is already a map passes through
// unchanged.
func normalizeMetadata(metadata interface{}) interface{} {
	items, ok := metadata.([]map[string]interface{})
	if !ok {
		return metadata
	}
	flat := make(map[string]interface{}, len(items))
	for _, item := range items {
		key, hasKey := item["key"]
		value, hasValue := item["value"]
		if hasKey && hasValue {
			if keyStr, ok := key.(string); ok {
				flat[keyStr] = value
			}
		}
	}
	return flat
}

func stripInfoCacheID(cache interface{}) interface{} {
	m, ok := cache.(map[string]interface{})
	if !ok {
		return cache
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
