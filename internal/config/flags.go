package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pagebench",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("params", "", "Launch parameters as a query string (e.g. 'iterationCount=2&tags=wasm&developerMode')")

	// Run parameters
	flags.IntP("iterations", "n", 10, "Number of full passes over the selected suites")
	flags.StringSlice("tags", DefaultTags, "Run suites carrying any of these tags ('all' selects every suite)")
	flags.StringSlice("suites", nil, "Exact suite names to run, overriding --tags")
	flags.String("shuffle-seed", "", "Seed for the suite order shuffle ('off' keeps catalog order)")
	flags.Int("warmup-before-sync", 0, "Untimed warmup iterations the page runs before each measurement")
	flags.Int("wait-before-sync", 0, "Milliseconds the page settles before each measurement")
	flags.Bool("developer-mode", false, "Allow --suites to name catalog-disabled suites")

	// Execution flags
	flags.Duration("timeout", 2*time.Minute, "Bound on one suite round trip (0 means unbounded)")
	flags.Duration("ready-timeout", 30*time.Second, "How long a page may take to announce readiness")
	flags.Duration("cooldown", 0, "Minimum pause between suite dispatches")
	flags.Int("retries", 0, "Retries when opening a page fails")
	flags.String("failure-policy", string(PolicyIteration), "What a failed suite iteration costs: 'iteration', 'suite', or 'abort'")
	flags.String("catalog", "", "Path to a suite catalog YAML file (defaults to the built-in catalog)")
	flags.StringSlice("header", nil, "Header sent when dialing remote pages, in key=value form")

	// Output flags
	flags.Bool("json-output", false, "Emit the metrics mapping as JSON")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("metrics-file", "", "Write Prometheus textfile metrics to the specified path")
	flags.String("archive-file", "", "Append the run to a JSON Lines results archive")
	flags.BoolP("quiet", "q", false, "Suppress the live progress line")
	flags.StringSlice("threshold", nil, "Score thresholds (repeatable, e.g., 'score:mean > 100')")
	flags.String("log-level", "info", "Log level: debug, info, warn, or error")
	flags.String("log-format", "console", "Log format: console or json")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported in traces")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of suite iterations to trace")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.Bool("tracing-propagate", false, "Send trace context to pages even without an exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and launch parameters.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.IterationCount = val
	}
	if fs.Changed("tags") {
		val, err := fs.GetStringSlice("tags")
		if err != nil {
			return err
		}
		cfg.Tags = splitList(strings.Join(val, ","))
	}
	if fs.Changed("suites") {
		val, err := fs.GetStringSlice("suites")
		if err != nil {
			return err
		}
		cfg.Suites = splitList(strings.Join(val, ","))
	}
	if fs.Changed("shuffle-seed") {
		val, err := fs.GetString("shuffle-seed")
		if err != nil {
			return err
		}
		seed, err := parseSeed(val)
		if err != nil {
			return fmt.Errorf("shuffle-seed: %w", err)
		}
		cfg.ShuffleSeed = seed
	}
	if fs.Changed("warmup-before-sync") {
		val, err := fs.GetInt("warmup-before-sync")
		if err != nil {
			return err
		}
		cfg.WarmupBeforeSync = val
	}
	if fs.Changed("wait-before-sync") {
		val, err := fs.GetInt("wait-before-sync")
		if err != nil {
			return err
		}
		cfg.WaitBeforeSync = val
	}
	if fs.Changed("developer-mode") {
		val, err := fs.GetBool("developer-mode")
		if err != nil {
			return err
		}
		cfg.DeveloperMode = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("ready-timeout") {
		val, err := fs.GetDuration("ready-timeout")
		if err != nil {
			return err
		}
		cfg.ReadyTimeout = val
	}
	if fs.Changed("cooldown") {
		val, err := fs.GetDuration("cooldown")
		if err != nil {
			return err
		}
		cfg.Cooldown = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("failure-policy") {
		val, err := fs.GetString("failure-policy")
		if err != nil {
			return err
		}
		cfg.FailurePolicy = FailurePolicy(val)
	}
	if fs.Changed("catalog") {
		val, err := fs.GetString("catalog")
		if err != nil {
			return err
		}
		cfg.CatalogFile = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("metrics-file") {
		val, err := fs.GetString("metrics-file")
		if err != nil {
			return err
		}
		cfg.MetricsFile = strings.TrimSpace(val)
	}
	if fs.Changed("archive-file") {
		val, err := fs.GetString("archive-file")
		if err != nil {
			return err
		}
		cfg.ArchiveFile = strings.TrimSpace(val)
	}
	if fs.Changed("quiet") {
		val, err := fs.GetBool("quiet")
		if err != nil {
			return err
		}
		cfg.Quiet = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	return nil
}
