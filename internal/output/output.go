// Package output provides styled terminal output helpers (success, error,
// warning, queue and conflict formatting) using lipgloss.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	stateStyles = map[models.ActionState]lipgloss.Style{
		models.StateQueued:     lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StateTerminal:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.StateConflicted: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}

	severityStyles = map[conflict.Severity]lipgloss.Style{
		conflict.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		conflict.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		conflict.SeverityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message.
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Title prints a bold heading.
func Title(text string) {
	fmt.Println(titleStyle.Render(text))
}

// Subtle prints dimmed text.
func Subtle(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// FormatAction renders one pending action line for queue listings.
func FormatAction(a models.PendingAction) string {
	state := stateStyles[a.State].Render(string(a.State))
	line := fmt.Sprintf("#%-4d %-7s %s %s  %s",
		a.ID, a.Action, kindStyle.Render(string(a.EntityKind)), a.EntityID, state)
	if a.Retries > 0 {
		line += subtleStyle.Render(fmt.Sprintf("  retries=%d", a.Retries))
	}
	if a.LastError != "" {
		line += "\n      " + subtleStyle.Render(truncate(a.LastError, 100))
	}
	return line
}

// FormatConflictLine renders a one-line conflict listing entry.
func FormatConflictLine(id int64, kind models.EntityKind, entityID string, summary conflict.Summary, detectedAt time.Time) string {
	sev := severityStyles[summary.Severity].Render(string(summary.Severity))
	return fmt.Sprintf("#%-4d %s %s  %d conflicting field(s)  %s  %s",
		id, kindStyle.Render(string(kind)), entityID,
		summary.ConflictedFields, sev,
		subtleStyle.Render(detectedAt.Local().Format("2006-01-02 15:04")))
}

// FormatSummary renders a sync pass summary.
func FormatSummary(s models.SyncSummary) string {
	if s.Skipped {
		return subtleStyle.Render("sync already in progress, skipped")
	}
	parts := []string{
		successStyle.Render(fmt.Sprintf("%d synced", s.Succeeded)),
	}
	if s.Failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Conflicts > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("%d conflict(s)", s.Conflicts)))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
