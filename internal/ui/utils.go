package ui

import "github.com/charmbracelet/x/ansi"

// truncate shortens s to at most width terminal cells, ending it with an
// ellipsis when something was cut.
func truncate(s string, width int) string {
	if width <= 3 {
		return "..."
	}
	return ansi.Truncate(s, width, "...")
}
