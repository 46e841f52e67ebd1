package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// FileSink writes the console rendering of a run to a per-run summary file.
// ANSI color sequences are stripped so the file reads cleanly in editors and
// CI log viewers.
type FileSink struct {
	baseDir string
}

// NewFileSink creates a file sink rooted at baseDir.
func NewFileSink(baseDir string) *FileSink {
	return &FileSink{baseDir: baseDir}
}

// Report renders the summary and writes it under
// <baseDir>/testrun-<runID>/summary.log.
func (s *FileSink) Report(summary *types.Summary) error {
	var buf bytes.Buffer
	console := NewConsoleReporter(&buf, true)
	if err := console.Report(summary); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	outputDir := filepath.Join(s.baseDir, "testrun-"+summary.RunID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	summaryFile := filepath.Join(outputDir, "summary.log")
	content := stripansi.Strip(buf.String())
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	return nil
}

// Path returns where the summary file for runID is written.
func (s *FileSink) Path(runID string) string {
	return filepath.Join(s.baseDir, "testrun-"+runID, "summary.log")
}
