package controller

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// NewUI picks the TUI when stdout is an interactive terminal, the plain
// renderer otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}

// TUI implements UI with a live progress view while the pipeline runs and
// falls back to the plain renderer for final tables.
type TUI struct {
	plain   *SimpleUI
	program *tea.Program
	done    chan struct{}
	stop    sync.Once
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{plain: NewSimpleUI(cmd)}
}

type stageMsg struct {
	stage  Stage
	detail string
}

type resolvedMsg struct {
	line string
}

type quitMsg struct{}

// Start launches the progress view in the background.
func (t *TUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.done = make(chan struct{})
	t.program = tea.NewProgram(newProgressModel(), tea.WithOutput(t.plain.cmd.OutOrStdout()))

	go func() {
		defer close(t.done)

		_, _ = t.program.Run()
	}()

	return nil
}

// Close stops the progress view.
func (t *TUI) Close(_ context.Context) {
	t.stopProgram()
}

// StageChanged advances the progress view to the next stage.
func (t *TUI) StageChanged(ctx context.Context, stage Stage, detail string) {
	if ctx.Err() != nil || t.program == nil {
		return
	}

	t.program.Send(stageMsg{stage: stage, detail: detail})
}

// DisplayResolved records the pinned source facts in the progress view.
func (t *TUI) DisplayResolved(ctx context.Context, resolved m.ResolvedSource) {
	if ctx.Err() != nil || t.program == nil {
		return
	}

	line := "ref " + resolved.Ref + ", commit " + resolved.Commit + " (" + string(resolved.Mirror) + ")"
	t.program.Send(resolvedMsg{line: line})
}

// DisplayReport stops the progress view and prints the report table.
func (t *TUI) DisplayReport(ctx context.Context, report *m.MutationReport) error {
	t.stopProgram()

	return t.plain.DisplayReport(ctx, report)
}

// DisplayPlan stops the progress view and prints the plan table.
func (t *TUI) DisplayPlan(ctx context.Context, entries []m.PlanEntry) error {
	t.stopProgram()

	return t.plain.DisplayPlan(ctx, entries)
}

// DisplayArtifact prints the final artifact facts.
func (t *TUI) DisplayArtifact(ctx context.Context, artifact *m.PackageArtifact) {
	t.stopProgram()
	t.plain.DisplayArtifact(ctx, artifact)
}

func (t *TUI) stopProgram() {
	if t.program == nil {
		return
	}

	t.stop.Do(func() {
		t.program.Send(quitMsg{})
		<-t.done
	})
}

// progressModel renders a spinner, the current stage and the stages already
// completed.
type progressModel struct {
	spinner  spinner.Model
	current  Stage
	detail   string
	resolved string
	finished []string
}

func newProgressModel() progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return progressModel{spinner: sp}
}

// Init implements tea.Model.
func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

// Update implements tea.Model.
func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case quitMsg:
		return pm, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return pm, tea.Quit
		}

		return pm, nil

	case stageMsg:
		if pm.current != "" {
			pm.finished = append(pm.finished, string(pm.current))
		}

		pm.current = msg.stage
		pm.detail = msg.detail

		return pm, nil

	case resolvedMsg:
		pm.resolved = msg.line
		return pm, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd

	default:
		return pm, nil
	}
}

// View implements tea.Model.
func (pm progressModel) View() string {
	var out string

	for _, stage := range pm.finished {
		out += appliedStyle.Render("✓") + " " + stage + "\n"
	}

	if pm.current != "" {
		out += pm.spinner.View() + string(pm.current)
		if pm.detail != "" {
			out += ": " + pm.detail
		}

		out += "\n"
	}

	if pm.resolved != "" {
		out += faintStyle.Render("  "+pm.resolved) + "\n"
	}

	return out
}
