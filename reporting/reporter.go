package reporting

import (
	"fmt"
	"io"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// Available report formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatJUnit   = "junit"
)

// Reporter renders a finished run summary. Reporters never influence the
// run: they consume a Summary and emit a representation of it.
type Reporter interface {
	Report(summary *types.Summary) error
}

// ForFormat returns the reporter for the named format writing to out.
func ForFormat(format string, out io.Writer) (Reporter, error) {
	switch format {
	case FormatConsole:
		return NewConsoleReporter(out, true), nil
	case FormatJSON:
		return NewJSONReporter(out), nil
	case FormatJUnit:
		return NewJUnitReporter(out), nil
	default:
		return nil, types.NewConfigurationError(
			fmt.Sprintf("unknown report format %q, valid formats: %s, %s, %s",
				format, FormatConsole, FormatJSON, FormatJUnit), nil)
	}
}
