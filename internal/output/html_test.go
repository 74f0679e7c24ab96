package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/torosent/pagebench/internal/metrics"
	"github.com/torosent/pagebench/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	seed := int64(123)
	var buf bytes.Buffer
	err := GenerateHTMLReport(&buf, sampleReport(), nil, ReportMetadata{
		Tags:        []string{"wasm", "gpu-test-suite"},
		ShuffleSeed: &seed,
	})
	if err != nil {
		t.Fatalf("GenerateHTMLReport: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Pagebench Report",
		"Run: 01J0000000000000000000TEST",
		"Tags: wasm, gpu-test-suite",
		"Shuffle seed: 123",
		"7500.00",
		"Sort-Floats-wasm",
		"fetch rejected",
		"Not Selected",
		"iteration-chart",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "Thresholds (") {
		t.Error("threshold section should be omitted without thresholds")
	}
}

func TestGenerateHTMLReportThresholds(t *testing.T) {
	ts, err := threshold.ParseMultiple([]string{"score:mean > 1000", "failures:count == 0"})
	if err != nil {
		t.Fatalf("ParseMultiple: %v", err)
	}
	results := threshold.NewEvaluator(ts).Evaluate(sampleReport())

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, sampleReport(), results, ReportMetadata{}); err != nil {
		t.Fatalf("GenerateHTMLReport: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Thresholds (1/2 Passed)") {
		t.Error("expected threshold summary")
	}
	if !strings.Contains(html, "Shuffle seed: off") {
		t.Error("expected shuffle to read off without a seed")
	}
	if !strings.Contains(html, "PASS") || !strings.Contains(html, "FAIL") {
		t.Error("expected both badges")
	}
}

func TestGenerateHTMLReportEscapesMessages(t *testing.T) {
	r := sampleReport()
	r.Suites[1].Failures[0].Message = "<script>alert(1)</script>"
	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, r, nil, ReportMetadata{}); err != nil {
		t.Fatalf("GenerateHTMLReport: %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("failure messages must be escaped")
	}
}

func TestGenerateHTMLReportWithoutIterations(t *testing.T) {
	r := &metrics.Report{Suites: []metrics.Metric{{Name: "Empty-Connector"}}}
	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, r, nil, ReportMetadata{}); err != nil {
		t.Fatalf("GenerateHTMLReport: %v", err)
	}
	if strings.Contains(buf.String(), "new uPlot") {
		t.Error("chart script should be omitted without iterations")
	}
}

func TestSummarizeThresholds(t *testing.T) {
	if SummarizeThresholds(nil) != nil {
		t.Error("expected nil summary for no results")
	}
	s := SummarizeThresholds([]threshold.Result{
		{Threshold: threshold.Threshold{Raw: "score:mean > 1"}, Pass: true},
		{Threshold: threshold.Threshold{Raw: "geomean:p90 < 1"}, Pass: false},
	})
	if s.Total != 2 || s.Passed != 1 || s.Failed != 1 || s.Results[1].Threshold != "geomean:p90 < 1" {
		t.Errorf("summary = %+v", s)
	}
}
