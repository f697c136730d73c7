package explore

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// chrome is the number of rows a framed pane spends on its title and border.
const chrome = 4

// scroller is a cursor over a list with a window of visible rows.
type scroller struct {
	cursor int
	offset int
	rows   int // visible rows, at least 1
}

// move applies a navigation key to a list of n items and reports whether
// the key was one.
func (s *scroller) move(msg tea.KeyMsg, n int) bool {
	switch {
	case key.Matches(msg, defaultKeys.Up):
		s.cursor--
	case key.Matches(msg, defaultKeys.Down):
		s.cursor++
	case key.Matches(msg, defaultKeys.PageUp):
		s.cursor -= s.rows
	case key.Matches(msg, defaultKeys.PageDown):
		s.cursor += s.rows
	case key.Matches(msg, defaultKeys.Home):
		s.cursor = 0
	case key.Matches(msg, defaultKeys.End):
		s.cursor = n - 1
	default:
		return false
	}
	s.clamp(n)
	return true
}

// clamp keeps the cursor inside [0, n) and on screen.
func (s *scroller) clamp(n int) {
	s.cursor = max(0, min(s.cursor, n-1))
	s.rows = max(1, s.rows)
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+s.rows {
		s.offset = s.cursor - s.rows + 1
	}
	s.offset = max(0, s.offset)
}

// window returns the visible slice bounds of a list of n items.
func (s scroller) window(n int) (lo, hi int) {
	lo = min(s.offset, n)
	return lo, min(lo+s.rows, n)
}

// frame draws body inside a titled, bordered box of w x h cells. Lines are
// cut or padded to the inner width and the body is padded to h-chrome rows.
func frame(title string, body []string, w, h int, focused bool) string {
	inner := max(0, w-2)
	rows := max(1, h-chrome)

	lines := make([]string, rows)
	for i := range lines {
		if i < len(body) {
			lines[i] = fit(body[i], inner)
		} else {
			lines[i] = strings.Repeat(" ", inner)
		}
	}

	border := inactiveBorderStyle
	if focused {
		border = activeBorderStyle
	}
	box := border.Width(inner).Height(h - 3).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), box)
}

// fit cuts s to width cells, ignoring escape sequences, and pads it.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = ansi.Truncate(s, width, "…")
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// highlight renders a plain copy of s as the selected row.
func highlight(s string, width int) string {
	return selectedRowStyle.Width(width).Render(ansi.Strip(s))
}
