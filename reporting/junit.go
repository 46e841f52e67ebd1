package reporting

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// JUnitReporter renders the run summary as JUnit XML, one testsuite per
// category, for CI systems that ingest JUnit reports.
type JUnitReporter struct {
	out io.Writer
}

// NewJUnitReporter creates a JUnit reporter writing to out.
func NewJUnitReporter(out io.Writer) *JUnitReporter {
	return &JUnitReporter{out: out}
}

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

// Report writes the summary as JUnit XML.
func (r *JUnitReporter) Report(summary *types.Summary) error {
	doc := junitTestSuites{
		Name:     "opa-acceptor run " + summary.RunID,
		Tests:    summary.Total,
		Failures: summary.Failed,
		Errors:   summary.Errored,
		Skipped:  summary.Skipped,
		Time:     fmt.Sprintf("%.3f", summary.Duration.Seconds()),
	}

	// Group by category preserving execution order of both categories and
	// tests within them.
	suiteIndex := make(map[string]int)
	suiteDuration := make(map[string]float64)
	for _, res := range summary.Results {
		idx, ok := suiteIndex[res.Category]
		if !ok {
			doc.Suites = append(doc.Suites, junitTestSuite{Name: res.Category})
			idx = len(doc.Suites) - 1
			suiteIndex[res.Category] = idx
		}

		tc := junitTestCase{
			Name:      res.Name,
			ClassName: res.Category,
			Time:      fmt.Sprintf("%.3f", res.Duration.Seconds()),
		}

		suite := &doc.Suites[idx]
		suite.Tests++
		switch res.Status {
		case types.TestStatusFail:
			suite.Failures++
			tc.Failure = &junitMessage{Message: res.Message, Content: detailText(res.Details)}
		case types.TestStatusError:
			suite.Errors++
			tc.Error = &junitMessage{Message: res.Message, Content: detailText(res.Details)}
		case types.TestStatusSkip:
			suite.Skipped++
			tc.Skipped = &junitMessage{Message: res.Message}
		}
		suite.Cases = append(suite.Cases, tc)
		suiteDuration[res.Category] += res.Duration.Seconds()
	}

	for i := range doc.Suites {
		doc.Suites[i].Time = fmt.Sprintf("%.3f", suiteDuration[doc.Suites[i].Name])
	}

	if _, err := io.WriteString(r.out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(r.out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(r.out, "\n")
	return err
}

func detailText(details map[string]any) string {
	out := ""
	for _, key := range sortedDetailKeys(details) {
		out += fmt.Sprintf("%s: %v\n", key, details[key])
	}
	return out
}
