// Package config loads benchmark run configuration from a config file,
// launch parameters, and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/pagebench/internal/failure"
)

// FailurePolicy decides what a failed suite iteration costs the rest of the run.
type FailurePolicy string

const (
	// PolicyIteration drops only the affected iteration.
	PolicyIteration FailurePolicy = "iteration"
	// PolicySuite disables the suite for the remainder of the run.
	PolicySuite FailurePolicy = "suite"
	// PolicyAbort fails the whole run.
	PolicyAbort FailurePolicy = "abort"
)

// DefaultTags is the tag filter used when none is given.
var DefaultTags = []string{"default"}

type Config struct {
	IterationCount   int               `mapstructure:"iteration_count"`
	Tags             []string          `mapstructure:"tags"`
	ShuffleSeed      *int64            `mapstructure:"shuffle_seed"`
	WarmupBeforeSync int               `mapstructure:"warmup_before_sync"`
	WaitBeforeSync   int               `mapstructure:"wait_before_sync"`
	DeveloperMode    bool              `mapstructure:"developer_mode"`
	Suites           []string          `mapstructure:"suites"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	ReadyTimeout     time.Duration     `mapstructure:"ready_timeout"`
	Cooldown         time.Duration     `mapstructure:"cooldown"`
	Retries          int               `mapstructure:"retries"`
	FailurePolicy    FailurePolicy     `mapstructure:"failure_policy"`
	CatalogFile      string            `mapstructure:"catalog"`
	Headers          map[string]string `mapstructure:"headers"`
	JSONOutput       bool              `mapstructure:"json_output"`
	HTMLOutput       string            `mapstructure:"html_output"`
	MetricsFile      string            `mapstructure:"metrics_file"`
	ArchiveFile      string            `mapstructure:"archive_file"`
	Quiet            bool              `mapstructure:"quiet"`
	Thresholds       []string          `mapstructure:"thresholds"`
	LogLevel         string            `mapstructure:"log_level"`
	LogFormat        string            `mapstructure:"log_format"`
	Tracing          TracingConfig     `mapstructure:"tracing"`
	ConfigFile       string            `mapstructure:"-"`
	Params           string            `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export. Tracing is off unless an
// endpoint is configured here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate controls whether trace context rides along with run
	// requests. Nil means follow Enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether spans will be exported.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context is attached to run requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// RunConfig is the immutable per-run projection of Config handed to the
// run controller.
type RunConfig struct {
	IterationCount   int
	Tags             []string
	ShuffleSeed      *int64
	WarmupBeforeSync int
	WaitBeforeSync   int
	DeveloperMode    bool
	Suites           []string
}

// RunConfig projects the benchmark parameters. Slices are copied so later
// changes to c do not leak into a running benchmark.
func (c Config) RunConfig() RunConfig {
	rc := RunConfig{
		IterationCount:   c.IterationCount,
		Tags:             append([]string(nil), c.Tags...),
		WarmupBeforeSync: c.WarmupBeforeSync,
		WaitBeforeSync:   c.WaitBeforeSync,
		DeveloperMode:    c.DeveloperMode,
		Suites:           append([]string(nil), c.Suites...),
	}
	if c.ShuffleSeed != nil {
		seed := *c.ShuffleSeed
		rc.ShuffleSeed = &seed
	}
	return rc
}

// Validate collects every problem with c into a single ConfigurationError.
func (c Config) Validate() error {
	var issues []string

	if c.IterationCount < 1 {
		issues = append(issues, "iterationCount must be >= 1")
	}
	if c.WarmupBeforeSync < 0 {
		issues = append(issues, "warmupBeforeSync must be >= 0")
	}
	if c.WaitBeforeSync < 0 {
		issues = append(issues, "waitBeforeSync must be >= 0")
	}
	if len(c.Suites) == 0 && len(c.Tags) == 0 {
		issues = append(issues, "tags must name at least one tag or \"all\"")
	}
	for i, tag := range c.Tags {
		if strings.TrimSpace(tag) == "" {
			issues = append(issues, fmt.Sprintf("tags[%d]: empty tag", i))
		}
	}
	issues = append(issues, duplicateIssues("suites", c.Suites)...)

	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.ReadyTimeout <= 0 {
		issues = append(issues, "readyTimeout must be > 0")
	}
	if c.Cooldown < 0 {
		issues = append(issues, "cooldown must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}

	switch c.FailurePolicy {
	case PolicyIteration, PolicySuite, PolicyAbort:
	default:
		issues = append(issues, fmt.Sprintf("failurePolicy must be 'iteration', 'suite', or 'abort', got %q", c.FailurePolicy))
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("logFormat must be 'console' or 'json', got %q", c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return failure.NewConfigurationError(issues...)
	}
	return nil
}

func duplicateIssues(field string, names []string) []string {
	var issues []string
	seen := map[string]int{}
	for idx, name := range names {
		if prev, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("%s[%d]: %q also given at index %d", field, idx, name, prev))
			continue
		}
		seen[name] = idx
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
