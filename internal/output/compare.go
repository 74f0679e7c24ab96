package output

import (
	"fmt"
	"io"
	"math"

	"github.com/torosent/pagebench/internal/metrics"
)

// LatestArchived returns the most recent record in the archive at path, or
// false when the archive is missing or empty.
func LatestArchived(path string) (ArchiveRecord, bool, error) {
	recs, err := ReadArchive(path)
	if err != nil || len(recs) == 0 {
		return ArchiveRecord{}, false, err
	}
	return recs[len(recs)-1], true, nil
}

// PrintComparison prints how report moved relative to an archived run. Only
// metrics present in both runs are compared.
func PrintComparison(w io.Writer, report *metrics.Report, prev ArchiveRecord) {
	fmt.Fprintf(w, "\nCompared with run %s (%s):\n", prev.RunID, prev.Time.Format("2006-01-02 15:04:05Z"))

	current := report.Metrics()
	for _, m := range report.Suites {
		if before, ok := prev.Metrics[m.Name]; ok && len(m.Values) > 0 {
			fmt.Fprintf(w, "  %-28s %10.3f -> %10.3f ms %s\n", m.Name, before.Mean, m.Mean, change(before.Mean, m.Mean))
		}
	}
	for _, name := range []string{metrics.GeomeanName, metrics.ScoreName} {
		before, ok := prev.Metrics[name]
		if !ok {
			continue
		}
		unit := "ms"
		if name == metrics.ScoreName {
			unit = "runs/min"
		}
		now := current[name].Mean
		fmt.Fprintf(w, "  %-28s %10.3f -> %10.3f %s %s\n", name, before.Mean, now, unit, change(before.Mean, now))
	}
}

func change(before, after float64) string {
	if before == 0 || math.IsNaN(before) {
		return ""
	}
	return fmt.Sprintf("(%+.1f%%)", (after-before)/before*100)
}
