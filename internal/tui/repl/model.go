package repl

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/pumpkin/internal/protocol"
	"github.com/mattjoyce/pumpkin/internal/script"
)

const (
	DefaultPrompt      = "PumpkinDB> "
	ContinuationPrompt = "..> "
	// EnvPrompt overrides DefaultPrompt.
	EnvPrompt = "PUMPKINDB_PROMPT"
)

// --- Message types ---

type traceMsg []byte

type resultMsg struct {
	res *protocol.Result
	err error
}

// Model is the interactive terminal.
type Model struct {
	ctx    context.Context
	sub    Submitter
	addr   string
	prompt string
	theme  Theme

	input textinput.Model
	acc   Accumulator
	busy  bool

	// Traces and the result of the running submission, in arrival order.
	msgs chan tea.Msg

	err error
}

// New creates a terminal model talking through sub.
func New(ctx context.Context, sub Submitter, addr, prompt string, theme Theme) *Model {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	ti := textinput.New()
	ti.Prompt = prompt
	ti.CharLimit = 0
	ti.Focus()
	return &Model{
		ctx:    ctx,
		sub:    sub,
		addr:   addr,
		prompt: prompt,
		theme:  theme,
		input:  ti,
		msgs:   make(chan tea.Msg, 64),
	}
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, line := range Banner(m.addr) {
		cmds = append(cmds, tea.Println(line))
	}
	cmds = append(cmds, textinput.Blink)
	return tea.Sequence(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Sequence(tea.Println("Aborted"), tea.Quit)
		case tea.KeyCtrlD:
			return m, tea.Sequence(tea.Println("Exiting"), tea.Quit)
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m, m.enter()
		}

	case traceMsg:
		return m, tea.Sequence(tea.Println(RenderTrace(msg, m.theme)), waitForMsg(m.msgs))

	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Sequence(tea.Println(m.theme.Error.Render(ErrorPrefix)+msg.err.Error()), tea.Quit)
		}
		return m, tea.Println(RenderResult(msg.res, m.theme))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// enter handles a completed line.
func (m *Model) enter() tea.Cmd {
	line := m.input.Value()
	echo := tea.Println(m.input.Prompt + line)
	m.input.Reset()

	in, ok := m.acc.Feed(line)
	if m.acc.Pending() {
		m.input.Prompt = ContinuationPrompt
	} else {
		m.input.Prompt = m.prompt
	}
	if !ok {
		return echo
	}
	if in.Kind == Help {
		return tea.Sequence(echo, tea.Printf("%s", HelpText))
	}

	program, err := script.Compile(in.Text)
	if err != nil {
		return tea.Sequence(echo, tea.Println(fmt.Sprintf("Script error: %v", err)))
	}
	m.busy = true
	return tea.Sequence(echo, tea.Batch(m.submit(program), waitForMsg(m.msgs)))
}

// submit runs the submission in the background, funnelling traces and the
// result through one channel so they are shown in arrival order.
func (m *Model) submit(program []byte) tea.Cmd {
	ch := m.msgs
	return func() tea.Msg {
		res, err := m.sub.Submit(m.ctx, program, func(v []byte) {
			ch <- traceMsg(append([]byte{}, v...))
		})
		ch <- resultMsg{res: res, err: err}
		return nil
	}
}

// waitForMsg waits for the next trace or result.
func waitForMsg(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m *Model) View() string {
	if m.busy {
		return m.theme.Dim.Render("running...")
	}
	return m.input.View()
}
