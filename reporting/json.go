package reporting

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// JSONReporter renders the run summary as a single JSON document, suitable
// for machine consumption by CI pipelines.
type JSONReporter struct {
	out io.Writer
}

// NewJSONReporter creates a JSON reporter writing to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out}
}

type jsonReport struct {
	RunID      string       `json:"run_id"`
	Timestamp  time.Time    `json:"timestamp"`
	Status     string       `json:"status"`
	Success    bool         `json:"success"`
	Total      int          `json:"total"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Errored    int          `json:"errored"`
	DurationMS float64      `json:"duration_ms"`
	Results    []jsonResult `json:"results"`
}

type jsonResult struct {
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Status     string         `json:"status"`
	DurationMS float64        `json:"duration_ms"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Report writes the summary as an indented JSON document.
func (r *JSONReporter) Report(summary *types.Summary) error {
	doc := jsonReport{
		RunID:      summary.RunID,
		Timestamp:  time.Now().UTC(),
		Status:     string(summary.Status()),
		Success:    summary.Success(),
		Total:      summary.Total,
		Passed:     summary.Passed,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Errored:    summary.Errored,
		DurationMS: float64(summary.Duration.Microseconds()) / 1000,
		Results:    make([]jsonResult, 0, len(summary.Results)),
	}

	for _, res := range summary.Results {
		doc.Results = append(doc.Results, jsonResult{
			Name:       res.Name,
			Category:   res.Category,
			Status:     string(res.Status),
			DurationMS: float64(res.Duration.Microseconds()) / 1000,
			Message:    res.Message,
			Details:    res.Details,
		})
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
