package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/config"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/logging"
	"github.com/torosent/pagebench/internal/metrics"
	"github.com/torosent/pagebench/internal/output"
	"github.com/torosent/pagebench/internal/runner"
	"github.com/torosent/pagebench/internal/threshold"
	"github.com/torosent/pagebench/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

// Exit codes.
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitThresholds    = 3
)

// thresholdError reports failed CI assertions.
type thresholdError struct {
	failed int
}

func (e *thresholdError) Error() string {
	return fmt.Sprintf("%d threshold(s) failed", e.failed)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var tErr *thresholdError
	switch {
	case errors.As(err, &tErr):
		return exitThresholds
	case failure.KindOf(err) == failure.KindConfiguration:
		return exitConfiguration
	default:
		return exitFailure
	}
}

func run(args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return failure.NewConfigurationError(err.Error())
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return failure.NewConfigurationError(err.Error())
	}
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, "pagebench")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	var launcher runner.Launcher = runner.NewRouter(logger, tp.Tracer(), makeHeaders(cfg.Headers))
	if cfg.Retries > 0 {
		launcher = runner.WithRetry(launcher, runner.NewRetryPolicy(cfg.Retries))
	}
	launcher = runner.WithLogging(launcher, logger)

	var observers runner.Observers
	if !cfg.Quiet && !cfg.JSONOutput {
		observers = append(observers, output.NewProgressReporter(stdout, cfg.IterationCount))
	}

	r := runner.New(runner.Options{
		Run:           cfg.RunConfig(),
		Catalog:       cat,
		Launcher:      launcher,
		Timeout:       cfg.Timeout,
		ReadyTimeout:  cfg.ReadyTimeout,
		Cooldown:      cfg.Cooldown,
		FailurePolicy: cfg.FailurePolicy,
		Observer:      observers,
		Logger:        logger,
		Tracer:        tp.Tracer(),
		Propagate:     tp.ShouldPropagate(),
	})

	report, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	var results []threshold.Result
	if len(thresholds) > 0 {
		results = threshold.NewEvaluator(thresholds).Evaluate(report)
		if !cfg.JSONOutput {
			printThresholds(stdout, results)
		}
	}

	meta := output.ReportMetadata{
		Tags:          cfg.Tags,
		Suites:        cfg.Suites,
		ShuffleSeed:   cfg.ShuffleSeed,
		DeveloperMode: cfg.DeveloperMode,
		Catalog:       cfg.CatalogFile,
	}
	if err := writeArtifacts(stdout, cfg, report, results, meta, logger); err != nil {
		return err
	}

	if !threshold.AllPassed(results) {
		failed := 0
		for _, res := range results {
			if !res.Pass {
				failed++
			}
		}
		return &thresholdError{failed: failed}
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func makeHeaders(values map[string]string) http.Header {
	if len(values) == 0 {
		return nil
	}
	h := make(http.Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}
	return h
}

func printThresholds(w io.Writer, results []threshold.Result) {
	fmt.Fprintln(w, "\nThresholds:")
	for _, res := range results {
		fmt.Fprintf(w, "  %s\n", res.Message)
	}
}

func writeArtifacts(stdout io.Writer, cfg *config.Config, report *metrics.Report, results []threshold.Result, meta output.ReportMetadata, logger *zap.Logger) error {
	if cfg.HTMLOutput != "" {
		f, err := os.Create(cfg.HTMLOutput)
		if err != nil {
			return fmt.Errorf("create HTML report: %w", err)
		}
		if err := output.GenerateHTMLReport(f, report, results, meta); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close HTML report: %w", err)
		}
		logger.Info("HTML report written", zap.String("path", cfg.HTMLOutput))
	}
	if cfg.MetricsFile != "" {
		if err := output.WriteMetricsFile(cfg.MetricsFile, report); err != nil {
			return err
		}
		logger.Info("metrics file written", zap.String("path", cfg.MetricsFile))
	}
	if cfg.ArchiveFile != "" {
		if !cfg.JSONOutput {
			prev, ok, err := output.LatestArchived(cfg.ArchiveFile)
			if err != nil {
				return err
			}
			if ok {
				output.PrintComparison(stdout, report, prev)
			}
		}
		if err := output.AppendArchive(cfg.ArchiveFile, output.NewArchiveRecord(report, meta)); err != nil {
			return err
		}
		logger.Info("run archived", zap.String("path", cfg.ArchiveFile))
	}
	return nil
}
