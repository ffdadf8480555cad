package envelope

import "testing"

func TestFormRouted(t *testing.T) {
	r := FormRouted("a.b.c", Down, "a.b", "run_instance", map[string]interface{}{"x": 1}, "resp-1", true)
	if r.Dest != "a.b.c" || r.Direction != Down || r.Path != "a.b" {
		t.Fatalf("unexpected routed envelope: %+v", r)
	}
	if r.Message.Method != "run_instance" || !r.NeedResponse || r.ResponseID != "resp-1" {
		t.Fatalf("unexpected routed envelope: %+v", r)
	}
}

func TestFormResponse(t *testing.T) {
	r := FormResponse("a.b", Up, "c.b.a", "resp-1", "ok", false)
	if r.Message.Method != "send_response" {
		t.Fatalf("expected send_response method, got %q", r.Message.Method)
	}
	info, ok := r.Message.Args["resultInfo"].(ResultInfo)
	if !ok {
		t.Fatalf("expected resultInfo to be a ResultInfo, got %T", r.Message.Args["resultInfo"])
	}
	if info.Result != "ok" || info.Failure {
		t.Fatalf("unexpected result info: %+v", info)
	}
}

func TestFormInstanceUpdateBroadcastStripsFields(t *testing.T) {
	instance := map[string]interface{}{
		"uuid":            "u-1",
		"id":              42,
		"security_groups": []string{"default"},
		"instance_type":   map[string]interface{}{"name": "m1.small"},
		"volumes":         []string{"vol-1"},
		"cell_name":       "a.b.c",
		"metadata":        []map[string]interface{}{{"key": "owner", "value": "alice"}},
		"info_cache":      map[string]interface{}{"id": 7, "network_info": "[]"},
	}
	b := FormInstanceUpdateBroadcast(Up, "a.b", 2, instance)

	if b.Message.Method != "instance_update_at_top" {
		t.Fatalf("unexpected method %q", b.Message.Method)
	}
	got, ok := b.Message.Args["instance"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected instance arg to be a map, got %T", b.Message.Args["instance"])
	}
	for _, field := range []string{"id", "security_groups", "instance_type", "volumes", "cell_name"} {
		if _, present := got[field]; present {
			t.Errorf("expected field %q to be stripped", field)
		}
	}
	if got["uuid"] != "u-1" {
		t.Error("expected uuid to survive sanitization")
	}
	metadata, ok := got["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metadata to be normalized to a map, got %T", got["metadata"])
	}
	if metadata["owner"] != "alice" {
		t.Errorf("expected normalized metadata to retain owner=alice, got %v", metadata)
	}
	cache, ok := got["info_cache"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected info_cache to remain a map, got %T", got["info_cache"])
	}
	if _, present := cache["id"]; present {
		t.Error("expected info_cache.id to be stripped")
	}
	if cache["network_info"] != "[]" {
		t.Error("expected info_cache.network_info to survive")
	}

	if _, present := instance["id"]; !present {
		t.Error("FormInstanceUpdateBroadcast should not mutate the caller's instance map")
	}
}

func TestFormInstanceDestroyBroadcast(t *testing.T) {
	b := FormInstanceDestroyBroadcast(Down, "a", 1, "u-99")
	if b.Message.Method != "instance_destroy_at_top" {
		t.Fatalf("unexpected method %q", b.Message.Method)
	}
	if b.Message.Args["instance_uuid"] != "u-99" {
		t.Fatalf("unexpected instance_uuid arg: %v", b.Message.Args["instance_uuid"])
	}
	if len(b.Message.Args) != 1 {
		t.Errorf("expected instance_destroy args to carry only the uuid, got %v", b.Message.Args)
	}
}
