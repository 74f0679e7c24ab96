package output

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestLatestArchived(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	if _, ok, err := LatestArchived(path); ok || err != nil {
		t.Fatalf("missing archive: ok=%v err=%v", ok, err)
	}

	first := NewArchiveRecord(sampleReport(), ReportMetadata{})
	first.RunID = "first"
	second := NewArchiveRecord(sampleReport(), ReportMetadata{})
	second.RunID = "second"
	for _, rec := range []ArchiveRecord{first, second} {
		if err := AppendArchive(path, rec); err != nil {
			t.Fatalf("AppendArchive: %v", err)
		}
	}

	latest, ok, err := LatestArchived(path)
	if err != nil || !ok || latest.RunID != "second" {
		t.Fatalf("latest = %+v, ok=%v, err=%v", latest, ok, err)
	}
}

func TestPrintComparison(t *testing.T) {
	prev := NewArchiveRecord(sampleReport(), ReportMetadata{})
	prev.RunID = "previous"
	delete(prev.Metrics, "Async-Fetch-gpu")

	report := sampleReport()
	report.Suites[0].Mean = 10
	report.Score.Mean = 9000

	var buf bytes.Buffer
	PrintComparison(&buf, report, prev)
	out := buf.String()

	for _, want := range []string{
		"Compared with run previous",
		"Sort-Floats-wasm",
		"12.500 ->     10.000 ms (-20.0%)",
		"7500.000 ->   9000.000 runs/min (+20.0%)",
		"(+0.0%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("comparison missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Async-Fetch-gpu") {
		t.Errorf("suite absent from the archived run should be skipped\n%s", out)
	}
}
