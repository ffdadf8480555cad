package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a.b"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate once CellName is set: %v", err)
	}
}

func TestValidateRequiresCellNameWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCells = true
	cfg.CellName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing CellName with EnableCells true")
	}
}

func TestValidateAllowsMissingCellNameWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCells = false
	cfg.CellName = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellDBCheckInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero CellDBCheckInterval")
	}

	cfg = DefaultConfig()
	cfg.CellName = "a"
	cfg.CellsResponseTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative CellsResponseTimeout")
	}
}

func TestValidateRejectsBadHopCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellMaxBroadcastHopCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for CellMaxBroadcastHopCount < 1")
	}
}

func TestValidateRejectsUnknownCatalogDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellsCatalogDriver = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown catalog driver")
	}
}

func TestValidateRequiresRedisAddrForRedisDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellsCatalogDriver = "redis"
	cfg.CellsCatalogRedis = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing CellsCatalogRedis")
	}
}

func TestValidateRejectsUnknownTransportDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellsDriver = "kafka"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown transport driver")
	}
}

func TestValidateRequiresAMQPURLForRPCDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.CellsDriver = "rpc"
	cfg.CellsAMQPURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing CellsAMQPURL")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellName = "a"
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellCapabilities["zone"] = "us-east"

	clone := cfg.Clone()
	clone.CellCapabilities["zone"] = "us-west"
	clone.CellName = "changed"

	if cfg.CellCapabilities["zone"] != "us-east" {
		t.Fatal("mutating clone's capabilities affected the original")
	}
	if cfg.CellName == "changed" {
		t.Fatal("mutating clone's CellName affected the original")
	}
}
