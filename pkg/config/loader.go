// Package config provides configuration file loading for cell config
// files, using the same flat "Key Value" line format as the original
// torrc loader it replaces.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadFromFile loads configuration from a cell config file. It parses
// the file line by line and updates the provided config. Lines starting
// with # are comments; each configuration line follows the format:
// Key Value.
func LoadFromFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validatePath(path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - path is validated by validatePath
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		key := parts[0]
		value := ""
		if len(parts) > 1 {
			value = strings.Join(parts[1:], " ")
		}

		if err := processConfigOption(cfg, key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func processConfigOption(cfg *Config, key, value string) error {
	switch key {
	case "cell_name":
		cfg.CellName = value

	case "cell_capability":
		k, v, ok := strings.Cut(value, "=")
		if !ok {
			return fmt.Errorf("invalid cell_capability value: %s (want key=value)", value)
		}
		if cfg.CellCapabilities == nil {
			cfg.CellCapabilities = make(map[string]string)
		}
		cfg.CellCapabilities[k] = v

	case "enable_cells":
		cfg.EnableCells = parseBool(value)

	case "cell_db_check_interval":
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid cell_db_check_interval: %w", err)
		}
		cfg.CellDBCheckInterval = d

	case "cells_catalog_driver":
		cfg.CellsCatalogDriver = value

	case "cells_catalog_redis_addr":
		cfg.CellsCatalogRedis = value

	case "cells_driver":
		cfg.CellsDriver = value

	case "cells_topic":
		cfg.CellsTopic = value

	case "cells_amqp_url":
		cfg.CellsAMQPURL = value

	case "cell_max_broadcast_hop_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid cell_max_broadcast_hop_count value: %s", value)
		}
		cfg.CellMaxBroadcastHopCount = n

	case "cells_response_timeout":
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid cells_response_timeout: %w", err)
		}
		cfg.CellsResponseTimeout = d

	case "cells_scheduler":
		cfg.CellsScheduler = value

	case "cells_rest_listen":
		cfg.CellsRestListen = value

	case "cells_metrics_listen":
		cfg.CellsMetricsListen = value

	case "log_level":
		cfg.LogLevel = strings.ToLower(value)

	default:
		// Silently ignore unknown options for forward compatibility.
	}

	return nil
}

// parseDuration parses a duration string with support for common time
// units: seconds (s), minutes (m), hours (h), days (d).
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	suffix := s[len(s)-1:]
	valueStr := s[:len(s)-1]

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", s)
	}

	switch suffix {
	case "s", "S":
		return time.Duration(value) * time.Second, nil
	case "m", "M":
		return time.Duration(value) * time.Minute, nil
	case "h", "H":
		return time.Duration(value) * time.Hour, nil
	case "d", "D":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		val, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		return time.Duration(val) * time.Second, nil
	}
}

// parseBool parses a boolean value from various string formats: 1/0,
// true/false, yes/no, on/off (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// validatePath validates a file path to prevent directory traversal.
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid path: directory traversal detected")
	}
	if !filepath.IsAbs(path) && filepath.IsAbs(cleanPath) {
		return fmt.Errorf("invalid path: attempts to escape working directory")
	}
	return nil
}

// SaveToFile saves the configuration to a cell config file.
func SaveToFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := validatePath(path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	file, err := os.Create(path) // #nosec G304 - path is validated by validatePath
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	fmt.Fprintf(writer, "# go-cells configuration file\n")
	fmt.Fprintf(writer, "# Generated automatically - edit with care\n\n")

	fmt.Fprintf(writer, "# Identity\n")
	fmt.Fprintf(writer, "cell_name %s\n", cfg.CellName)
	for k, v := range cfg.CellCapabilities {
		fmt.Fprintf(writer, "cell_capability %s=%s\n", k, v)
	}
	fmt.Fprintf(writer, "enable_cells %s\n\n", formatBool(cfg.EnableCells))

	fmt.Fprintf(writer, "# Topology / Catalog\n")
	fmt.Fprintf(writer, "cell_db_check_interval %s\n", formatDuration(cfg.CellDBCheckInterval))
	fmt.Fprintf(writer, "cells_catalog_driver %s\n", cfg.CellsCatalogDriver)
	fmt.Fprintf(writer, "cells_catalog_redis_addr %s\n\n", cfg.CellsCatalogRedis)

	fmt.Fprintf(writer, "# Transport\n")
	fmt.Fprintf(writer, "cells_driver %s\n", cfg.CellsDriver)
	fmt.Fprintf(writer, "cells_topic %s\n", cfg.CellsTopic)
	fmt.Fprintf(writer, "cells_amqp_url %s\n\n", cfg.CellsAMQPURL)

	fmt.Fprintf(writer, "# Routing / Broadcast\n")
	fmt.Fprintf(writer, "cell_max_broadcast_hop_count %d\n", cfg.CellMaxBroadcastHopCount)
	fmt.Fprintf(writer, "cells_response_timeout %s\n\n", formatDuration(cfg.CellsResponseTimeout))

	fmt.Fprintf(writer, "# Scheduling\n")
	fmt.Fprintf(writer, "cells_scheduler %s\n\n", cfg.CellsScheduler)

	fmt.Fprintf(writer, "# HTTP surfaces\n")
	fmt.Fprintf(writer, "cells_rest_listen %s\n", cfg.CellsRestListen)
	fmt.Fprintf(writer, "cells_metrics_listen %s\n\n", cfg.CellsMetricsListen)

	fmt.Fprintf(writer, "# Logging\n")
	fmt.Fprintf(writer, "log_level %s\n", cfg.LogLevel)

	return writer.Flush()
}

// formatDuration formats a duration for writing to a config file.
func formatDuration(d time.Duration) string {
	if d%(24*time.Hour) == 0 && d >= 24*time.Hour {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	if d%time.Hour == 0 && d >= time.Hour {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	if d%time.Minute == 0 && d >= time.Minute {
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return fmt.Sprintf("%ds", d/time.Second)
}

// formatBool formats a boolean for writing to a config file.
func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
