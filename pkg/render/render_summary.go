package render

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/pipeline"
)

var summary_template *template.Template

// SummaryData is everything printed at the end of a run.
type SummaryData struct {
	Summary    pipeline.Summary
	Input      string
	ResultsDSN string
	ArchiveURL string
}

func init() {
	mainTmpl := `GeneValidator run {{ .Summary.RunID }}
Input: {{ .Input }}
Started: {{ .Summary.StartedAt.Format "2006-01-02 15:04:05" }} ({{ duration .Summary.Elapsed }})

Predictions validated: {{ .Summary.Total }}
  good (score >= {{ goodScore }}): {{ .Summary.Good }} ({{ percent .Summary.Good .Summary.Total }})
  bad: {{ .Summary.Bad }} ({{ percent .Summary.Bad .Summary.Total }})
  no evidence: {{ .Summary.NoEvidence }}
{{ if .Summary.Scores }}
Score distribution:
{{ range $i, $n := .Summary.ScoreHistogram }}  {{ bucket $i }} {{ bar $n }} {{ $n }}
{{ end }}{{ end }}{{ if .Summary.Timings }}
Test                  runs   avg time    errors
{{ range .Summary.Tests }}{{ row $.Summary . }}
{{ end }}{{ end }}{{ if .ResultsDSN }}
Results stored in {{ .ResultsDSN }}{{ end }}{{ if .ArchiveURL }}
Summary archived to {{ .ArchiveURL }}{{ end }}
`

	summary_template = template.New("summary").Funcs(template.FuncMap{
		"goodScore": func() int { return pipeline.GoodScore },
		"percent": func(n, total int) string {
			if total == 0 {
				return "0%"
			}
			return fmt.Sprintf("%.0f%%", 100*float64(n)/float64(total))
		},
		"duration": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
		"bucket": func(i int) string {
			if i == 9 {
				return " 90-100"
			}
			return fmt.Sprintf("%3d-%-3d", i*10, i*10+9)
		},
		"bar": func(n int) string { return strings.Repeat("#", min(n, 50)) },
		"row": func(s pipeline.Summary, name string) string {
			t := s.Timings[name]
			return fmt.Sprintf("%-20s %6d %10s %9d", name, t.Count, t.Average().Round(time.Microsecond), s.Errors[name])
		},
	})
	summary_template = template.Must(summary_template.Parse(mainTmpl))
}

// RenderSummary writes the plain-text run report.
func RenderSummary(w io.Writer, data SummaryData) error {
	logger.Info("Rendering run summary", zap.String("run", data.Summary.RunID), zap.Int("total", data.Summary.Total))
	return summary_template.Execute(w, data)
}
