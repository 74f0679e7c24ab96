// Package metrics turns suite timings into benchmark scores.
//
// # Collector
//
// A [Collector] is created per run with the executed suites and the iteration
// count. The run controller records each suite iteration as it completes:
//
//	collector := metrics.NewCollector([]string{"Sort", "Empty"}, 2)
//	collector.RecordSuccess("Sort", 0, 12*time.Millisecond)
//	collector.RecordFailure("Empty", 0, err)
//
// Failed iterations contribute no value, so a suite's Values has one entry per
// iteration only when every iteration succeeded.
//
// # Aggregation
//
// [Collector.Aggregate] produces a [Report]:
//   - each suite's Mean is the arithmetic mean of its values
//   - Geomean gets one value per iteration: the geometric mean over the suites
//     that succeeded in that iteration
//   - Score gets one value per iteration: [ScoreOf] the Geomean value, that is
//     60000 / geomean in milliseconds
//
// An iteration in which no suite succeeded is an aggregation error, as is a
// run with no suites at all.
//
// # Summaries
//
// Every metric with values carries a [Summary] (min, max, p50, p90 from an
// HDR histogram at microsecond resolution, plus the sample standard deviation).
package metrics
