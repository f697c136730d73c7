package explore

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// filterRow is one line of the facet tree: a facet heading (value < 0) or
// one of its values.
type filterRow struct {
	facet facetID
	value int
}

func (r filterRow) heading() bool { return r.value < 0 }

// filterPane is the left-side facet tree.
type filterPane struct {
	facets    *facetState
	collapsed map[facetID]bool
	rows      []filterRow
	scroll    scroller
	width     int
	height    int
	focused   bool
}

func newFilterPane(facets *facetState) filterPane {
	fp := filterPane{facets: facets, collapsed: make(map[facetID]bool)}
	fp.rebuild()
	return fp
}

// rebuild lists the headings of non-empty facets and the values of the
// expanded ones.
func (fp *filterPane) rebuild() {
	fp.rows = fp.rows[:0]
	for _, def := range facetDefs {
		values := fp.facets.Values[def.ID]
		if len(values) == 0 {
			continue
		}
		fp.rows = append(fp.rows, filterRow{facet: def.ID, value: -1})
		if fp.collapsed[def.ID] {
			continue
		}
		for i := range values {
			fp.rows = append(fp.rows, filterRow{facet: def.ID, value: i})
		}
	}
	fp.scroll.clamp(len(fp.rows))
}

func (fp filterPane) current() (filterRow, bool) {
	if fp.scroll.cursor < 0 || fp.scroll.cursor >= len(fp.rows) {
		return filterRow{}, false
	}
	return fp.rows[fp.scroll.cursor], true
}

// setCollapsed folds or unfolds the facet under the cursor, leaving the
// cursor on its heading.
func (fp *filterPane) setCollapsed(folded bool) {
	row, ok := fp.current()
	if !ok {
		return
	}
	fp.collapsed[row.facet] = folded
	fp.rebuild()
	for i, r := range fp.rows {
		if r.facet == row.facet && r.heading() {
			fp.scroll.cursor = i
			break
		}
	}
	fp.scroll.clamp(len(fp.rows))
}

// toggleCurrent selects or deselects the value under the cursor, or folds
// a heading.
func (fp *filterPane) toggleCurrent() {
	row, ok := fp.current()
	if !ok {
		return
	}
	if row.heading() {
		fp.setCollapsed(!fp.collapsed[row.facet])
		return
	}
	v := fp.facets.Values[row.facet][row.value]
	v.Selected = !v.Selected
}

func (fp filterPane) Update(msg tea.Msg) (filterPane, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !fp.focused {
		return fp, nil
	}
	if fp.scroll.move(km, len(fp.rows)) {
		return fp, nil
	}
	switch {
	case key.Matches(km, defaultKeys.ToggleFilter):
		fp.toggleCurrent()
	case key.Matches(km, defaultKeys.Left):
		fp.setCollapsed(true)
	case key.Matches(km, defaultKeys.Right):
		fp.setCollapsed(false)
	case key.Matches(km, defaultKeys.ResetFilter):
		fp.facets.resetAll()
	}
	return fp, nil
}

func (fp filterPane) View() string {
	if fp.width <= 0 || fp.height <= 0 {
		return ""
	}
	inner := fp.width - 2

	var body []string
	lo, hi := fp.scroll.window(len(fp.rows))
	for i := lo; i < hi; i++ {
		line := fp.renderRow(fp.rows[i], inner)
		if i == fp.scroll.cursor && fp.focused {
			line = highlight(line, inner)
		}
		body = append(body, line)
	}

	return frame(" Filters ", body, fp.width, fp.height, fp.focused)
}

func (fp filterPane) renderRow(row filterRow, width int) string {
	if row.heading() {
		arrow := "▾"
		if fp.collapsed[row.facet] {
			arrow = "▸"
		}
		label := facetDefs[row.facet].Label
		if n := len(fp.facets.selectedValues(row.facet)); n > 0 {
			label += fmt.Sprintf(" (%d)", n)
		}
		return facetLabelStyle.Render(fmt.Sprintf(" %s %s", arrow, label))
	}

	v := fp.facets.Values[row.facet][row.value]
	count := facetCountStyle.Render(fmt.Sprintf("%d", v.Count))
	label := fit(v.Value, max(1, width-12))
	if v.Selected {
		return fmt.Sprintf("   %s %s %s", facetSelectedStyle.Render("✓"), facetSelectedStyle.Render(label), count)
	}
	return fmt.Sprintf("     %s %s", label, count)
}

func (fp *filterPane) setSize(w, h int) {
	fp.width = w
	fp.height = h
	fp.scroll.rows = max(1, h-chrome)
	fp.scroll.clamp(len(fp.rows))
}
