package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/pagebench/internal/config"
	"github.com/torosent/pagebench/internal/failure"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IterationCount != 10 {
		t.Errorf("IterationCount = %d, want 10", cfg.IterationCount)
	}
	if len(cfg.Tags) != 1 || cfg.Tags[0] != "default" {
		t.Errorf("Tags = %v, want [default]", cfg.Tags)
	}
	if cfg.ShuffleSeed != nil {
		t.Errorf("ShuffleSeed = %d, want none", *cfg.ShuffleSeed)
	}
	if cfg.FailurePolicy != config.PolicyIteration {
		t.Errorf("FailurePolicy = %q, want iteration", cfg.FailurePolicy)
	}
	if cfg.Timeout != 2*time.Minute || cfg.ReadyTimeout != 30*time.Second {
		t.Errorf("Timeout = %s, ReadyTimeout = %s", cfg.Timeout, cfg.ReadyTimeout)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %g, want 1", cfg.Tracing.SampleRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"iterationCount": 3,
		"tags": ["wasm", "gpu-test-suite"],
		"shuffleSeed": 123,
		"warmupBeforeSync": 2,
		"timeout": "45s",
		"failurePolicy": "suite",
		"headers": {"x-token": "abc"},
		"tracing": {"endpoint": "localhost:4318", "protocol": "http", "sample_rate": 0.5}
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--iterations", "5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IterationCount != 5 {
		t.Errorf("IterationCount = %d, want flag value 5", cfg.IterationCount)
	}
	if strings.Join(cfg.Tags, ",") != "wasm,gpu-test-suite" {
		t.Errorf("Tags = %v", cfg.Tags)
	}
	if cfg.ShuffleSeed == nil || *cfg.ShuffleSeed != 123 {
		t.Errorf("ShuffleSeed = %v, want 123", cfg.ShuffleSeed)
	}
	if cfg.WarmupBeforeSync != 2 {
		t.Errorf("WarmupBeforeSync = %d, want 2", cfg.WarmupBeforeSync)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.Timeout)
	}
	if cfg.FailurePolicy != config.PolicySuite {
		t.Errorf("FailurePolicy = %q, want suite", cfg.FailurePolicy)
	}
	if cfg.Headers["X-Token"] != "abc" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Tracing.Endpoint != "localhost:4318" || cfg.Tracing.Protocol != "http" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"iteration_count: 2",
		"tags: wasm, cpu",
		"developer_mode: true",
		"suites:",
		"  - Sort-Floats-wasm",
		"cooldown: 50ms",
		"catalog: ./suites.yaml",
		"thresholds:",
		"  - score:mean > 10",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", cfg.IterationCount)
	}
	if strings.Join(cfg.Tags, ",") != "wasm,cpu" {
		t.Errorf("Tags = %v", cfg.Tags)
	}
	if !cfg.DeveloperMode || len(cfg.Suites) != 1 || cfg.Suites[0] != "Sort-Floats-wasm" {
		t.Errorf("DeveloperMode = %v, Suites = %v", cfg.DeveloperMode, cfg.Suites)
	}
	if cfg.Cooldown != 50*time.Millisecond {
		t.Errorf("Cooldown = %s", cfg.Cooldown)
	}
	if cfg.CatalogFile != "./suites.yaml" {
		t.Errorf("CatalogFile = %q", cfg.CatalogFile)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
}

func TestLaunchParams(t *testing.T) {
	params := "developerMode&iterationCount=1&warmupBeforeSync=2&waitBeforeSync=2&shuffleSeed=123&suites=Async-Fetch-gpu"
	cfg, err := config.NewLoader().Load([]string{"--params", params})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	rc := cfg.RunConfig()
	if !rc.DeveloperMode || rc.IterationCount != 1 || rc.WarmupBeforeSync != 2 || rc.WaitBeforeSync != 2 {
		t.Errorf("RunConfig = %+v", rc)
	}
	if rc.ShuffleSeed == nil || *rc.ShuffleSeed != 123 {
		t.Errorf("ShuffleSeed = %v", rc.ShuffleSeed)
	}
	if len(rc.Suites) != 1 || rc.Suites[0] != "Async-Fetch-gpu" {
		t.Errorf("Suites = %v", rc.Suites)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestPrecedenceFileParamsFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("iterationCount: 7\ntags: [cpu]\nshuffleSeed: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.NewLoader().Load([]string{
		"--config", path,
		"--params", "iterationCount=3&tags=wasm",
		"--tags", "all",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IterationCount != 3 {
		t.Errorf("params should override the file: IterationCount = %d", cfg.IterationCount)
	}
	if len(cfg.Tags) != 1 || cfg.Tags[0] != "all" {
		t.Errorf("flags should override params: Tags = %v", cfg.Tags)
	}
	if cfg.ShuffleSeed == nil || *cfg.ShuffleSeed != 9 {
		t.Errorf("unset sources must keep the file value: ShuffleSeed = %v", cfg.ShuffleSeed)
	}
}

func TestShuffleSeedOff(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--params", "shuffleSeed=5", "--shuffle-seed", "off"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ShuffleSeed != nil {
		t.Errorf("ShuffleSeed = %d, want none", *cfg.ShuffleSeed)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown param":      {"--params", "iterations=3"},
		"bad param integer":  {"--params", "iterationCount=two"},
		"bad seed flag":      {"--shuffle-seed", "abc"},
		"bad header":         {"--header", "novalue"},
		"missing config":     {"--config", "/does/not/exist.yaml"},
		"unknown flag":       {"--concurrency", "4"},
		"bad developer mode": {"--params", "developerMode=maybe"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.NewLoader().Load(args); err == nil {
				t.Fatalf("Load(%v) expected error", args)
			}
		})
	}
}

func TestHelpRequested(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("err = %v, want ErrHelpRequested", err)
	}
}

func TestRunConfigIsACopy(t *testing.T) {
	seed := int64(1)
	cfg := config.Defaults()
	cfg.ShuffleSeed = &seed
	rc := cfg.RunConfig()

	cfg.Tags[0] = "changed"
	seed = 2
	if rc.Tags[0] != "default" || *rc.ShuffleSeed != 1 {
		t.Fatalf("RunConfig shares state with Config: %+v", rc)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	valid := func(mut func(*config.Config)) config.Config {
		cfg := config.Defaults()
		mut(cfg)
		return *cfg
	}

	cases := []struct {
		name string
		have config.Config
		want []string
	}{
		{
			name: "zero iterations",
			have: valid(func(c *config.Config) { c.IterationCount = 0 }),
			want: []string{"iterationCount"},
		},
		{
			name: "negative values",
			have: valid(func(c *config.Config) {
				c.WarmupBeforeSync = -1
				c.WaitBeforeSync = -1
				c.Timeout = -1
				c.Cooldown = -1
				c.Retries = -1
				c.ReadyTimeout = 0
			}),
			want: []string{"warmupBeforeSync", "waitBeforeSync", "timeout", "cooldown", "retries", "readyTimeout"},
		},
		{
			name: "duplicate suites",
			have: valid(func(c *config.Config) {
				c.DeveloperMode = true
				c.Suites = []string{"A", "A"}
			}),
			want: []string{"suites[1]"},
		},
		{
			name: "no tags",
			have: valid(func(c *config.Config) { c.Tags = nil }),
			want: []string{"tags"},
		},
		{
			name: "bad enums",
			have: valid(func(c *config.Config) {
				c.FailurePolicy = "retry"
				c.LogFormat = "xml"
				c.Tracing.Protocol = "thrift"
				c.Tracing.SampleRate = 2
			}),
			want: []string{"failurePolicy", "logFormat", "protocol", "sample_rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.have.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var cfgErr failure.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error %T is not a ConfigurationError", err)
			}
			if len(cfgErr.Issues()) < len(tc.want) {
				t.Errorf("Issues() = %v, want at least %d", cfgErr.Issues(), len(tc.want))
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestTracingConfigPropagation(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	off := config.TracingConfig{}
	if off.Enabled() || off.ShouldPropagate() {
		t.Error("empty tracing config should be disabled")
	}
	on := config.TracingConfig{Endpoint: "localhost:4317"}
	if !on.Enabled() || !on.ShouldPropagate() {
		t.Error("endpoint should enable tracing")
	}
	yes := true
	forced := config.TracingConfig{Propagate: &yes}
	if forced.Enabled() || !forced.ShouldPropagate() {
		t.Error("Propagate should override Enabled")
	}
}
