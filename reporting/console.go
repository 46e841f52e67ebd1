package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// ConsoleReporter renders the run summary as an ASCII table, followed by a
// detail block for every failed or errored test.
type ConsoleReporter struct {
	out            io.Writer
	includeDetails bool
}

// NewConsoleReporter creates a console reporter writing to out.
func NewConsoleReporter(out io.Writer, includeDetails bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:            out,
		includeDetails: includeDetails,
	}
}

// Report renders the summary table.
func (r *ConsoleReporter) Report(summary *types.Summary) error {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Acceptance Results (run %s)", summary.RunID)

	t.AppendHeader(table.Row{"CATEGORY", "TEST", "STATUS", "DURATION", "MESSAGE"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "CATEGORY", AutoMerge: true},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "MESSAGE", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, res := range summary.Results {
		t.AppendRow(table.Row{
			res.Category,
			res.Name,
			strings.ToUpper(string(res.Status)),
			formatDuration(res.Duration),
			res.Message,
		})
	}

	switch summary.Status() {
	case types.TestStatusFail, types.TestStatusError:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleDefault)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", summary.Total),
		strings.ToUpper(string(summary.Status())),
		formatDuration(summary.Duration),
		fmt.Sprintf("%d passed, %d failed, %d skipped, %d errored",
			summary.Passed, summary.Failed, summary.Skipped, summary.Errored),
	})

	t.Render()

	if r.includeDetails {
		return r.writeFailureDetails(summary)
	}
	return nil
}

func (r *ConsoleReporter) writeFailureDetails(summary *types.Summary) error {
	for _, res := range summary.Results {
		if res.Status != types.TestStatusFail && res.Status != types.TestStatusError {
			continue
		}

		if _, err := fmt.Fprintf(r.out, "\n%s: %s [%s]\n", strings.ToUpper(string(res.Status)), res.Name, res.Category); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(r.out, "  %s\n", res.Message); err != nil {
			return err
		}
		for _, key := range sortedDetailKeys(res.Details) {
			if _, err := fmt.Fprintf(r.out, "  %s: %v\n", key, res.Details[key]); err != nil {
				return err
			}
		}
	}
	return nil
}
