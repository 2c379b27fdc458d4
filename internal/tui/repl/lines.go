package repl

import "strings"

// InputKind says what a completed line means.
type InputKind int

const (
	// Submit carries an expression to compile and send.
	Submit InputKind = iota
	// Help asks for the local help text. Nothing is sent.
	Help
)

// Input is a complete unit of user input.
type Input struct {
	Kind InputKind
	Text string
}

// Accumulator joins lines into expressions. An expression ends with a line
// whose last character is `.`; earlier lines are joined with a space.
type Accumulator struct {
	parts []string
}

// Feed consumes one line and reports whether it completed an input.
func (a *Accumulator) Feed(line string) (Input, bool) {
	if len(line) >= 2 && line[0] == '\\' {
		if line[1] == 'h' {
			return Input{Kind: Help}, true
		}
		return Input{}, false
	}
	if strings.HasSuffix(line, ".") {
		a.parts = append(a.parts, strings.TrimSuffix(line, "."))
		text := strings.Join(a.parts, " ")
		a.parts = nil
		if strings.TrimSpace(text) == "" {
			return Input{}, false
		}
		return Input{Kind: Submit, Text: text}, true
	}
	a.parts = append(a.parts, line)
	return Input{}, false
}

// Pending reports whether an expression is partially entered.
func (a *Accumulator) Pending() bool { return len(a.parts) > 0 }

// Reset discards a partial expression.
func (a *Accumulator) Reset() { a.parts = nil }
