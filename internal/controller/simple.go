package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

var (
	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// SimpleUI implements UI with plain line output via the cobra command.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Close finalizes the UI (no-op for SimpleUI).
func (s *SimpleUI) Close(_ context.Context) {}

// StageChanged prints the stage transition.
func (s *SimpleUI) StageChanged(ctx context.Context, stage Stage, detail string) {
	if ctx.Err() != nil {
		return
	}

	if detail == "" {
		s.cmd.Printf("==> %s\n", stage)
		return
	}

	s.cmd.Printf("==> %s: %s\n", stage, detail)
}

// DisplayResolved prints the pinned source facts.
func (s *SimpleUI) DisplayResolved(ctx context.Context, resolved m.ResolvedSource) {
	if ctx.Err() != nil {
		return
	}

	s.cmd.Printf("    ref %s, commit %s, version %s (%s)\n",
		resolved.Ref, resolved.Commit, resolved.Version, resolved.Mirror)
}

// DisplayReport renders the mutation report as a table plus a summary line.
func (s *SimpleUI) DisplayReport(ctx context.Context, report *m.MutationReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(report.Results) == 0 {
		s.cmd.Println("no mutations ran")
		return nil
	}

	s.cmd.Printf("\n%s", renderReportTable(report))
	s.cmd.Println(summaryLine(report))

	return nil
}

// DisplayPlan renders the dry-run applicability table.
func (s *SimpleUI) DisplayPlan(ctx context.Context, entries []m.PlanEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Mutation", "Kind", "Applies", "Reason"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	applicable := 0

	for _, entry := range entries {
		applies := "no"
		if entry.Applicable {
			applies = "yes"
			applicable++
		}

		table.Append([]string{entry.MutationID, string(entry.Kind), applies, entry.Reason})
	}

	table.Render()

	s.cmd.Printf("\n%s", buf.String())
	s.cmd.Printf("%d of %d mutation(s) would apply\n", applicable, len(entries))

	return nil
}

// DisplayArtifact prints the final artifact facts.
func (s *SimpleUI) DisplayArtifact(ctx context.Context, artifact *m.PackageArtifact) {
	if ctx.Err() != nil || artifact == nil {
		return
	}

	s.cmd.Printf("\n%s %s\n", appliedStyle.Render("packaged"), artifact.ArchivePath)
	s.cmd.Printf("  sha256  %s\n", artifact.Checksum)
	s.cmd.Printf("  version %s (%s)\n", artifact.Metadata.Version, artifact.Metadata.Commit)
}

func renderReportTable(report *m.MutationReport) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Mutation", "Kind", "Outcome", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, result := range report.Results {
		outcome := string(result.Outcome)
		if result.Fuzzy {
			outcome += " (fuzzy)"
		}

		detail := result.Detail
		if result.Strategy != "" {
			detail = fmt.Sprintf("[%s] %s", result.Strategy, detail)
		}

		table.Append([]string{result.MutationID, string(result.Kind), styleOutcome(outcome, result.Outcome), detail})
	}

	table.Render()

	return buf.String()
}

func styleOutcome(text string, outcome m.Outcome) string {
	switch outcome {
	case m.OutcomeApplied:
		return appliedStyle.Render(text)
	case m.OutcomeAlreadyApplied:
		return faintStyle.Render(text)
	case m.OutcomeSkipped:
		return skippedStyle.Render(text)
	case m.OutcomeFailed:
		return failedStyle.Render(text)
	default:
		return text
	}
}

func summaryLine(report *m.MutationReport) string {
	counts := report.Counts()

	return fmt.Sprintf("%d applied, %d already applied, %d skipped, %d failed",
		counts[m.OutcomeApplied],
		counts[m.OutcomeAlreadyApplied],
		counts[m.OutcomeSkipped],
		counts[m.OutcomeFailed],
	)
}
