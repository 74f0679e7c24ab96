package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// applyParams applies a launch-parameter query string such as
// "iterationCount=2&tags=wasm,gpu&developerMode". A parameter given without a
// value is a boolean flag set to true.
func applyParams(cfg *Config, raw string) error {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if raw == "" {
		return nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}

	for key, vals := range values {
		val := strings.TrimSpace(vals[len(vals)-1])
		switch key {
		case "iterationCount":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("params: iterationCount: %w", err)
			}
			cfg.IterationCount = n
		case "tags":
			cfg.Tags = splitList(val)
		case "suites":
			cfg.Suites = splitList(val)
		case "shuffleSeed":
			seed, err := parseSeed(val)
			if err != nil {
				return fmt.Errorf("params: shuffleSeed: %w", err)
			}
			cfg.ShuffleSeed = seed
		case "warmupBeforeSync":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("params: warmupBeforeSync: %w", err)
			}
			cfg.WarmupBeforeSync = n
		case "waitBeforeSync":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("params: waitBeforeSync: %w", err)
			}
			cfg.WaitBeforeSync = n
		case "developerMode":
			if val == "" {
				cfg.DeveloperMode = true
				continue
			}
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("params: developerMode: %w", err)
			}
			cfg.DeveloperMode = b
		default:
			return fmt.Errorf("params: unknown parameter %q", key)
		}
	}
	return nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSeed reads an optional shuffle seed. "off" and "" mean no shuffling.
func parseSeed(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "off") {
		return nil, nil
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &seed, nil
}
