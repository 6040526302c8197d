package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/defectset/pkg/pipeline"
)

const progressWidth = 30

var (
	styleBarDone = lipgloss.NewStyle().Foreground(colorCyan)
	styleBarTodo = lipgloss.NewStyle().Foreground(colorDim)
	styleStage   = lipgloss.NewStyle().Foreground(colorWhite).Width(10)
)

// =============================================================================
// ProgressModel - live stage progress
// =============================================================================

type (
	eventMsg pipeline.Event
	doneMsg  struct{ err error }
)

// ProgressModel is the bubbletea model showing one bar per stage.
type ProgressModel struct {
	Title  string
	Stages []string
	Events map[string]pipeline.Event
	Err    error
	Done   bool
}

// NewProgressModel creates a progress model with the given title.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{Title: title, Events: make(map[string]pipeline.Event)}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if _, seen := m.Events[msg.Stage]; !seen {
			m.Stages = append(m.Stages, msg.Stage)
		}
		m.Events[msg.Stage] = pipeline.Event(msg)
	case doneMsg:
		m.Err = msg.err
		m.Done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	for _, name := range m.Stages {
		ev := m.Events[name]
		b.WriteString(styleStage.Render(name))
		b.WriteString(bar(ev.Done, ev.Total, progressWidth))
		b.WriteString(StyleDim.Render(fmt.Sprintf(" %d/%d", ev.Done, ev.Total)))
		b.WriteString("\n")
	}
	if m.Done {
		if m.Err != nil {
			b.WriteString(StyleError.Render(iconError + " failed"))
		} else {
			b.WriteString(StyleSuccess.Render(iconSuccess + " done"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// bar renders a progress bar of the given width.
func bar(done, total, width int) string {
	filled := width
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return styleBarDone.Render(strings.Repeat("█", filled)) +
		styleBarTodo.Render(strings.Repeat("░", width-filled))
}

// =============================================================================
// Tracking
// =============================================================================

// track runs fn while showing its stage progress on c.Err: a live bubbletea
// view with --progress, a spinner otherwise. fn receives the callback to set
// as pipeline.Options.Progress.
func (c *CLI) track(ctx context.Context, title string, fn func(progress func(pipeline.Event)) error) error {
	if c.progress {
		return trackTUI(ctx, c.Err, title, fn)
	}

	spinner := newSpinner(ctx, c.Err, title)
	spinner.Start()
	defer spinner.Stop()
	return fn(func(ev pipeline.Event) {
		spinner.SetMessage(fmt.Sprintf("%s %s %d/%d", title, ev.Stage, ev.Done, ev.Total))
	})
}

func trackTUI(ctx context.Context, w io.Writer, title string, fn func(progress func(pipeline.Event)) error) error {
	p := tea.NewProgram(NewProgressModel(title),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
	)

	errc := make(chan error, 1)
	go func() {
		err := fn(func(ev pipeline.Event) { p.Send(eventMsg(ev)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		if ferr := <-errc; ferr != nil {
			return ferr
		}
		return fmt.Errorf("progress view: %w", err)
	}
	return <-errc
}
