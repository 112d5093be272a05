// Package output renders reports as tables, JSON and CSV.
package output

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/term"
)

const (
	compactThreshold = 100 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

var (
	datedModel   = regexp.MustCompile(`^claude-(\w+)-([\d-]+)-(\d{8})$`)
	undatedModel = regexp.MustCompile(`^claude-(\w+)-([\d-]+)$`)
	prefixModel  = regexp.MustCompile(`^anthropic/claude-(\w+)-([\d.]+)$`)
)

// terminalWidth returns the current terminal width
func terminalWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if width, err := strconv.Atoi(cols); err == nil && width > 0 {
			return width
		}
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// IsTerminal reports whether stdout is attached to a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	var b strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatCost formats a cost value as currency
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.2f", cost)
}

// formatHours renders an optional hour count
func formatHours(h *float64) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fh", *h)
}

// shortenModelName converts full model names to short form
// claude-sonnet-4-5-20250929 -> sonnet-4-5
// claude-opus-4-20250514 -> opus-4
func shortenModelName(name string) string {
	for _, re := range []*regexp.Regexp{datedModel, undatedModel, prefixModel} {
		if m := re.FindStringSubmatch(name); m != nil {
			return m[1] + "-" + m[2]
		}
	}
	return name
}

// shortenSessionID truncates a session UUID to its first 8 chars
func shortenSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate cuts s to width bytes, marking the cut with ".."
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 2 {
		return s[:width]
	}
	return s[:width-2] + ".."
}
