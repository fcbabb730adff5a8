package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultReportWidth = 80
	minReportWidth     = 20
)

// terminalWidth returns the current terminal width or the fallback.
func terminalWidth(fallback int) int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// RenderReport renders a markdown conflict report with terminal-aware
// wrapping. On renderer failure the raw markdown comes back unstyled so
// the report is never lost.
func RenderReport(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	width := terminalWidth(defaultReportWidth)
	if width < minReportWidth {
		width = minReportWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
