// Package runner is the benchmark run controller.
//
// A run selects suites from a catalog, opens the pages hosting them, and
// executes IterationCount passes over the selection. Each suite iteration is a
// single request to the suite's page; the page answers with the measured
// duration or an error.
//
// # Basic Usage
//
//	cat, _ := catalog.Default()
//	r := runner.New(runner.Options{
//		Run:          cfg.RunConfig(),
//		Catalog:      cat,
//		Launcher:     runner.NewRouter(logger, tracer, nil),
//		Timeout:      time.Minute,
//		ReadyTimeout: 30 * time.Second,
//	})
//	report, err := r.Run(ctx)
//
// # Ordering
//
// Without a shuffle seed every pass runs suites in catalog order. With a seed,
// a single shuffle generator is created for the run and each pass draws the
// next permutation from it, so passes differ from each other while the whole
// sequence is reproducible.
//
// # Pages
//
// A [Launcher] opens pages. [InProcess] serves the built-in workloads over an
// in-memory pipe and [Remote] dials WebSocket pages; [Router] picks one by
// catalog type. Suites that share a page share one session. Every page is
// opened before the first pass and must announce readiness within
// ReadyTimeout or the run fails.
//
// # Failures
//
// A step error, page fault, round-trip timeout, or broken channel fails only
// the current suite iteration under the default "iteration" policy. The
// "suite" policy additionally skips the suite for the rest of the run and
// "abort" ends the run. Configuration errors, unreachable pages, and
// iterations in which no suite succeeded always end the run.
//
// # Middleware
//
// Enhance launchers with middleware:
//   - [WithLogging]: Log page launches
//   - [WithRetry]: Retry failed launches with backoff
package runner
