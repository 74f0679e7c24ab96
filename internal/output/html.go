package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/pagebench/internal/metrics"
	"github.com/torosent/pagebench/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           *metrics.Report
	Suites           []metrics.Metric
	Degraded         []metrics.Metric
	ThresholdSummary *ThresholdSummary
	IterationsJSON   string
	Metadata         ReportMetadata
}

// ReportMetadata describes how the run was configured.
type ReportMetadata struct {
	Tags          []string
	Suites        []string
	ShuffleSeed   *int64
	DeveloperMode bool
	Catalog       string
}

// ThresholdSummary counts threshold outcomes.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// iterationPoint feeds the per-iteration chart.
type iterationPoint struct {
	Iteration int     `json:"iteration"`
	Geomean   float64 `json:"geomean"`
	Score     float64 `json:"score"`
}

// SummarizeThresholds converts evaluator results for reporting. It returns
// nil when no thresholds were evaluated.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// GenerateHTMLReport writes a standalone HTML report with an embedded
// per-iteration chart.
func GenerateHTMLReport(w io.Writer, report *metrics.Report, thresholdResults []threshold.Result, metadata ReportMetadata) error {
	points := make([]iterationPoint, len(report.Geomean.Values))
	for i, g := range report.Geomean.Values {
		points[i] = iterationPoint{Iteration: i + 1, Geomean: g}
		if i < len(report.Score.Values) {
			points[i].Score = report.Score.Values[i]
		}
	}
	pointsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal iterations: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           report,
		Suites:           report.SortedSuites(),
		Degraded:         report.Degraded(),
		ThresholdSummary: SummarizeThresholds(thresholdResults),
		IterationsJSON:   string(pointsJSON),
		Metadata:         metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"seed": func(s *int64) string {
			if s == nil {
				return "off"
			}
			return fmt.Sprint(*s)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pagebench Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f6f8;
            color: #1f2933;
            line-height: 1.5;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; background: white; border-radius: 8px; overflow: hidden; }
        header { background: #1f4e79; color: white; padding: 28px 36px; }
        header h1 { font-size: 1.8rem; margin-bottom: 8px; }
        header .meta { opacity: 0.85; font-size: 0.9rem; }
        .content { padding: 36px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 18px; margin-bottom: 36px; }
        .card { background: #f8fafc; border-radius: 8px; padding: 18px; border-left: 4px solid #1f4e79; }
        .card h3 { font-size: 0.85rem; color: #64748b; text-transform: uppercase; margin-bottom: 8px; }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card.error { border-left-color: #dc2626; }
        .section { margin-bottom: 36px; }
        .section h2 { font-size: 1.4rem; margin-bottom: 16px; padding-bottom: 8px; border-bottom: 2px solid #e2e8f0; }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 10px; border-bottom: 1px solid #e2e8f0; }
        th { background: #f8fafc; font-size: 0.85rem; text-transform: uppercase; color: #475569; }
        td.num { font-variant-numeric: tabular-nums; }
        .badge { display: inline-block; padding: 3px 10px; border-radius: 10px; font-size: 0.8rem; font-weight: 600; }
        .badge-success { background: #dcfce7; color: #166534; }
        .badge-error { background: #fee2e2; color: #991b1b; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Pagebench Report</h1>
            <div class="meta">Generated: {{.GeneratedAt}}{{if .Report.RunID}} | Run: {{.Report.RunID}}{{end}}</div>
            <div class="meta">Tags: {{range $i, $t := .Metadata.Tags}}{{if $i}}, {{end}}{{$t}}{{end}} | Shuffle seed: {{seed .Metadata.ShuffleSeed}}{{if .Metadata.DeveloperMode}} | Developer mode{{end}}{{if .Metadata.Catalog}} | Catalog: {{.Metadata.Catalog}}{{end}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Score</h3>
                    <div class="value">{{formatFloat .Report.Score.Mean}}</div>
                </div>
                <div class="card">
                    <h3>Geomean (ms)</h3>
                    <div class="value">{{ms .Report.Geomean.Mean}}</div>
                </div>
                <div class="card">
                    <h3>Iterations</h3>
                    <div class="value">{{.Report.Iterations}}</div>
                </div>
                <div class="card{{if .Degraded}} error{{end}}">
                    <h3>Failed iterations</h3>
                    <div class="value">{{.Report.FailureCount}}</div>
                </div>
            </div>

            {{if .Report.Geomean.Values}}
            <div class="section">
                <h2>Per Iteration</h2>
                <div id="iteration-chart" class="chart"></div>
            </div>
            {{end}}

            <div class="section">
                <h2>Suites (ms)</h2>
                <table>
                    <thead>
                        <tr><th>Suite</th><th>Mean</th><th>Min</th><th>P50</th><th>P90</th><th>Max</th><th>Failed</th></tr>
                    </thead>
                    <tbody>
                        {{range .Suites}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td class="num">{{ms .Mean}}</td>
                            {{with .Summary}}
                            <td class="num">{{ms .Min}}</td>
                            <td class="num">{{ms .P50}}</td>
                            <td class="num">{{ms .P90}}</td>
                            <td class="num">{{ms .Max}}</td>
                            {{else}}
                            <td>-</td><td>-</td><td>-</td><td>-</td>
                            {{end}}
                            <td class="num">{{len .Failures}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            {{if .Degraded}}
            <div class="section">
                <h2>Failures</h2>
                <table>
                    <thead>
                        <tr><th>Suite</th><th>Iteration</th><th>Kind</th><th>Step</th><th>Message</th></tr>
                    </thead>
                    <tbody>
                        {{range $m := .Degraded}}{{range $m.Failures}}
                        <tr>
                            <td>{{$m.Name}}</td>
                            <td class="num">{{.Iteration}}</td>
                            <td><span class="badge badge-error">{{.Kind}}</span></td>
                            <td>{{if .Step}}{{.Step}}{{else}}-{{end}}</td>
                            <td>{{.Message}}</td>
                        </tr>
                        {{end}}{{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">PASS</span>{{else}}<span class="badge badge-error">FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Excluded}}
            <div class="section">
                <h2>Not Selected</h2>
                <p>{{range $i, $n := .Report.Excluded}}{{if $i}}, {{end}}{{$n}}{{end}}</p>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Report.Geomean.Values}}
    <script>
        const points = JSON.parse({{.IterationsJSON}});
        const el = document.getElementById('iteration-chart');
        new uPlot({
            width: el.offsetWidth,
            height: 300,
            scales: { x: { time: false }, score: { auto: true } },
            series: [
                { label: "Iteration" },
                { label: "Geomean (ms)", stroke: "#1f4e79", width: 2 },
                { label: "Score", stroke: "#16a34a", width: 2, scale: "score" }
            ],
            axes: [
                { label: "Iteration" },
                { label: "Geomean (ms)" },
                { side: 1, scale: "score", label: "Score" }
            ]
        }, [
            points.map(p => p.iteration),
            points.map(p => p.geomean),
            points.map(p => p.score)
        ], el);
    </script>
    {{end}}
</body>
</html>
`
