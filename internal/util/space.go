package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads or truncates str to exactly width terminal cells, so labels
// line up in the TUI whatever script they are written in.
func PadRight(str string, width int) string {
	if width <= 0 {
		return ""
	}
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}
