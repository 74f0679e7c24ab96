package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns a Config holding every default value.
func Defaults() *Config {
	return &Config{
		IterationCount: 10,
		Tags:           append([]string(nil), DefaultTags...),
		Timeout:        2 * time.Minute,
		ReadyTimeout:   30 * time.Second,
		FailurePolicy:  PolicyIteration,
		Headers:        map[string]string{},
		LogLevel:       "info",
		LogFormat:      "console",
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Sources apply in order: defaults, config file, --params, flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	return FromFlags(cmd.Flags())
}

// FromFlags builds a Config from an already parsed flag set, as handed over
// by a cobra command.
func FromFlags(flagSet *pflag.FlagSet) (*Config, error) {
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			return nil, ErrHelpRequested
		}
	}

	cfg := Defaults()

	configPath, err := flagSet.GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
			return nil, err
		}
		cfg.ConfigFile = configPath
	}

	params, err := flagSet.GetString("params")
	if err != nil {
		return nil, err
	}
	if err := applyParams(cfg, params); err != nil {
		return nil, err
	}
	cfg.Params = params

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.CatalogFile = strings.TrimSpace(cfg.CatalogFile)
	cfg.FailurePolicy = FailurePolicy(strings.ToLower(strings.TrimSpace(string(cfg.FailurePolicy))))
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// fileSettings is the lower-cased key space viper reads from a config file.
// Each key may be spelled in camelCase or snake_case.
type fileSettings map[string]any

func (s fileSettings) lookup(keys ...string) (any, bool) {
	for _, key := range keys {
		if val, ok := s[key]; ok && val != nil {
			return val, true
		}
	}
	return nil, false
}

func (s fileSettings) intVal(dst *int, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) floatVal(dst *float64, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	val, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) boolVal(dst *bool, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	val, err := cast.ToBoolE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) str(dst *string, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	val, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = strings.TrimSpace(val)
	return nil
}

// dur reads a Go duration string; bare numbers count seconds.
func (s fileSettings) dur(dst *time.Duration, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	if _, isString := raw.(string); !isString {
		secs, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = time.Duration(secs * float64(time.Second))
		return nil
	}
	val, err := time.ParseDuration(strings.TrimSpace(raw.(string)))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

// list reads a YAML list or a comma-separated string.
func (s fileSettings) list(dst *[]string, name string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	if str, isString := raw.(string); isString {
		*dst = splitList(str)
		return nil
	}
	items, err := cast.ToStringSliceE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = splitList(strings.Join(items, ","))
	return nil
}

// applyConfigSettings applies values read from a config file.
func applyConfigSettings(cfg *Config, settings map[string]any) error {
	s := fileSettings(settings)
	var seed, policy string
	seedSet := false
	if _, ok := s.lookup("shuffleseed", "shuffle_seed"); ok {
		seedSet = true
	}

	err := errors.Join(
		s.intVal(&cfg.IterationCount, "iterationCount", "iterationcount", "iteration_count"),
		s.list(&cfg.Tags, "tags", "tags"),
		s.list(&cfg.Suites, "suites", "suites"),
		s.str(&seed, "shuffleSeed", "shuffleseed", "shuffle_seed"),
		s.intVal(&cfg.WarmupBeforeSync, "warmupBeforeSync", "warmupbeforesync", "warmup_before_sync"),
		s.intVal(&cfg.WaitBeforeSync, "waitBeforeSync", "waitbeforesync", "wait_before_sync"),
		s.boolVal(&cfg.DeveloperMode, "developerMode", "developermode", "developer_mode"),
		s.dur(&cfg.Timeout, "timeout", "timeout"),
		s.dur(&cfg.ReadyTimeout, "readyTimeout", "readytimeout", "ready_timeout"),
		s.dur(&cfg.Cooldown, "cooldown", "cooldown"),
		s.intVal(&cfg.Retries, "retries", "retries"),
		s.str(&policy, "failurePolicy", "failurepolicy", "failure_policy"),
		s.str(&cfg.CatalogFile, "catalog", "catalog"),
		s.boolVal(&cfg.JSONOutput, "jsonOutput", "jsonoutput", "json_output"),
		s.str(&cfg.HTMLOutput, "htmlOutput", "htmloutput", "html_output"),
		s.str(&cfg.MetricsFile, "metricsFile", "metricsfile", "metrics_file"),
		s.str(&cfg.ArchiveFile, "archiveFile", "archivefile", "archive_file"),
		s.boolVal(&cfg.Quiet, "quiet", "quiet"),
		s.list(&cfg.Thresholds, "thresholds", "thresholds"),
		s.str(&cfg.LogLevel, "logLevel", "loglevel", "log_level"),
		s.str(&cfg.LogFormat, "logFormat", "logformat", "log_format"),
		applyHeaderSettings(cfg, s),
		applyTracingSettings(&cfg.Tracing, s),
	)
	if err != nil {
		return err
	}

	if seedSet {
		parsed, err := parseSeed(seed)
		if err != nil {
			return fmt.Errorf("shuffleSeed: %w", err)
		}
		cfg.ShuffleSeed = parsed
	}
	if policy != "" {
		cfg.FailurePolicy = FailurePolicy(policy)
	}
	return nil
}

func applyHeaderSettings(cfg *Config, s fileSettings) error {
	raw, ok := s.lookup("headers")
	if !ok {
		return nil
	}
	hdrs, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	for k, v := range hdrs {
		if strings.TrimSpace(k) == "" {
			return errors.New("headers: key cannot be empty")
		}
		cfg.Headers[http.CanonicalHeaderKey(k)] = v
	}
	return nil
}

func applyTracingSettings(tc *TracingConfig, s fileSettings) error {
	raw, ok := s.lookup("tracing")
	if !ok {
		return nil
	}
	nested, err := cast.ToStringMapE(raw)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	t := make(fileSettings, len(nested))
	for k, v := range nested {
		t[strings.ToLower(k)] = v
	}

	next := *tc
	var propagate bool
	_, propagateSet := t.lookup("propagate")
	err = errors.Join(
		t.str(&next.Endpoint, "tracing.endpoint", "endpoint"),
		t.str(&next.Protocol, "tracing.protocol", "protocol"),
		t.str(&next.ServiceName, "tracing.service_name", "servicename", "service_name"),
		t.floatVal(&next.SampleRate, "tracing.sample_rate", "samplerate", "sample_rate"),
		t.boolVal(&next.Insecure, "tracing.insecure", "insecure"),
		t.boolVal(&propagate, "tracing.propagate", "propagate"),
	)
	if err != nil {
		return err
	}
	next.Protocol = strings.ToLower(next.Protocol)
	if propagateSet {
		next.Propagate = &propagate
	}
	*tc = next
	return nil
}
