package repl

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/mattjoyce/pumpkin/internal/protocol"
	"github.com/mattjoyce/pumpkin/internal/script"
)

const (
	TracePrefix = "Trace: "
	ErrorPrefix = "Error: "
)

// HelpText is printed for \h.
const HelpText = `
To send an expression, end it with ` + "`.`" + `
To trace a value in the script use TRACE instruction
To quit, hit ^D
`

// Banner is printed once connected.
func Banner(addr string) []string {
	return []string{
		"Connected to PumpkinDB at " + addr,
		"To send an expression, end it with `.`",
		`Type \h for help.`,
	}
}

// FormatItem renders printable ASCII as a quoted string and anything else
// as 0x-prefixed lowercase hex.
func FormatItem(v []byte) string {
	for _, c := range v {
		if c < 0x20 || c > 0x7e {
			return "0x" + hex.EncodeToString(v)
		}
	}
	return strconv.Quote(string(v))
}

// FormatItems renders values separated by spaces.
func FormatItems(values [][]byte) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatItem(v)
	}
	return strings.Join(parts, " ")
}

// RenderResult renders a result on one line: the stack, then, for a
// failure, the error prefix and the decoded error items.
func RenderResult(res *protocol.Result, theme Theme) string {
	stack := FormatItems(res.Stack)
	if !res.Failed() {
		return stack
	}
	detail := FormatItem(res.FailureRaw)
	if values, err := script.DataValues(res.FailureRaw); err == nil {
		detail = FormatItems(values)
	}
	line := theme.Error.Render(ErrorPrefix) + detail
	if stack != "" {
		line = stack + " " + line
	}
	return line
}

// RenderTrace renders one trace line.
func RenderTrace(value []byte, theme Theme) string {
	return theme.Trace.Render(TracePrefix) + FormatItem(value)
}
