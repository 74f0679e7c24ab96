// Command pagebench-page serves the built-in demo pages over WebSocket so
// that pagebench can benchmark them as remote pages. Each workload is served
// at /<workload>; every connection gets a freshly loaded page.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/pagebench/internal/config"
	"github.com/torosent/pagebench/internal/connector"
	"github.com/torosent/pagebench/internal/logging"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/tracing"
	"github.com/torosent/pagebench/internal/websocket"
	"github.com/torosent/pagebench/internal/workload"
)

// pageVersion is the app version announced by served pages.
const pageVersion = "1"

type pageOptions struct {
	addr      string
	logLevel  string
	logFormat string
	tracing   config.TracingConfig
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := pageOptions{tracing: config.TracingConfig{Protocol: "grpc", SampleRate: 1.0}}
	cmd := &cobra.Command{
		Use:           "pagebench-page",
		Short:         "Serve the built-in benchmark pages over WebSocket",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "127.0.0.1:8090", "Listen address")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")
	flags.StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	flags.StringVar(&opts.tracing.Endpoint, "tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.StringVar(&opts.tracing.Protocol, "tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.BoolVar(&opts.tracing.Insecure, "tracing-insecure", false, "Disable TLS to the OTLP collector")
	return cmd
}

func serve(ctx context.Context, opts pageOptions) error {
	logger, err := logging.New(logging.Config{Level: opts.logLevel, Format: opts.logFormat})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tp, err := tracing.Init(ctx, opts.tracing, "pagebench-page")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newMux(logger, tp.Tracer()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving pages", zap.String("addr", opts.addr), zap.Strings("workloads", workload.Names()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newMux routes /<workload> to a WebSocket page and / to a JSON index.
func newMux(logger *zap.Logger, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	for _, name := range workload.Names() {
		entry, _ := workload.Lookup(name)
		log := logger.With(zap.String("workload", name))
		mux.Handle("/"+name, websocket.Handler(pageSession(name, entry, log, tracer), websocket.HandlerOptions{
			WriteTimeout: 10 * time.Second,
			OnError: func(err error) {
				log.Warn("page session ended", zap.Error(err))
			},
		}))
	}
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"workloads": workload.Names()})
	})
	return mux
}

// pageSession loads a fresh page for every accepted connection.
func pageSession(name string, entry workload.Entry, logger *zap.Logger, tracer trace.Tracer) websocket.ServeFunc {
	return func(ctx context.Context, t protocol.Transport) error {
		page := connector.New(name, pageVersion, connector.Options{Logger: logger, Tracer: tracer})
		if err := entry(page); err != nil {
			return fmt.Errorf("load page %s: %w", name, err)
		}
		logger.Debug("page loaded", zap.String("app_id", page.ID()), zap.Strings("suites", page.Suites()))
		err := page.Serve(ctx, t)
		page.Wait()
		return err
	}
}
