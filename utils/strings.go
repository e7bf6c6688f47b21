package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// WordWrap splits text into lines no wider than width terminal cells. Lines
// are broken at the last break opportunity (usually after a space) and long
// words are split where they overflow. Newlines in text always break.
func WordWrap(text string, width int) (lines []string) {
	if width <= 0 {
		return nil
	}

	var (
		// Byte offsets into text: start of the current line and end of the
		// last cluster consumed.
		start, pos int
		lineWidth  int
		// Last optional break point and the width of the line up to it.
		breakAt, breakWidth int
	)

	state := -1
	rest := text
	for len(rest) > 0 {
		var (
			cluster    string
			boundaries int
		)
		cluster, rest, boundaries, state = uniseg.StepString(rest, state)
		w := boundaries >> uniseg.ShiftWidth

		if lineWidth+w > width && pos > start {
			switch {
			case strings.TrimSpace(cluster) == "":
				// Overflowing whitespace is dropped at the break.
				lines = append(lines, text[start:pos])
				pos += len(cluster)
				start, lineWidth = pos, 0
				breakAt, breakWidth = pos, 0
				continue
			case breakAt > start:
				lines = append(lines, strings.TrimRight(text[start:breakAt], " "))
				lineWidth -= breakWidth
				start = breakAt
			default:
				lines = append(lines, text[start:pos])
				start, lineWidth = pos, 0
			}
			breakAt, breakWidth = start, 0
		}

		pos += len(cluster)
		lineWidth += w

		switch boundaries & uniseg.MaskLine {
		case uniseg.LineMustBreak:
			// The end of text is reported as a mandatory break too.
			if rest != "" || uniseg.HasTrailingLineBreakInString(cluster) {
				lines = append(lines, strings.TrimRight(text[start:pos], "\r\n"))
				start, lineWidth = pos, 0
				breakAt, breakWidth = pos, 0
			}
		case uniseg.LineCanBreak:
			breakAt, breakWidth = pos, lineWidth
		}
	}

	if start < len(text) || len(lines) == 0 {
		lines = append(lines, text[start:])
	}
	return lines
}

// Truncate shortens s to fit in width cells, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Width returns the number of cells s takes up in a terminal.
func Width(s string) int {
	return runewidth.StringWidth(s)
}
