package explore

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// detailsPane shows the report and hits of the selected finding.
type detailsPane struct {
	finding   *findingRow
	hitCursor int
	width     int
	height    int
	offset    int // scroll offset for content
	focused   bool
}

func newDetailsPane() detailsPane {
	return detailsPane{}
}

func (dp *detailsPane) setFinding(f *findingRow) {
	dp.finding = f
	dp.hitCursor = 0
	dp.offset = 0
}

func (dp detailsPane) selectedHit() *hitRow {
	if dp.finding == nil || dp.hitCursor < 0 || dp.hitCursor >= len(dp.finding.Hits) {
		return nil
	}
	return dp.finding.Hits[dp.hitCursor]
}

func (dp detailsPane) Update(msg tea.Msg) (detailsPane, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !dp.focused {
		return dp, nil
	}

	switch {
	case key.Matches(km, defaultKeys.Up):
		dp.offset = max(0, dp.offset-1)
	case key.Matches(km, defaultKeys.Down):
		dp.offset++
	case key.Matches(km, defaultKeys.Left):
		dp.selectHit(dp.hitCursor - 1)
	case key.Matches(km, defaultKeys.Right):
		dp.selectHit(dp.hitCursor + 1)
	case key.Matches(km, defaultKeys.Home):
		dp.offset = 0
	case key.Matches(km, defaultKeys.PageDown):
		dp.offset += dp.visibleRows()
	case key.Matches(km, defaultKeys.PageUp):
		dp.offset = max(0, dp.offset-dp.visibleRows())
	}
	return dp, nil
}

// selectHit moves to hit i of the finding when it exists.
func (dp *detailsPane) selectHit(i int) {
	if dp.finding == nil || i < 0 || i >= len(dp.finding.Hits) {
		return
	}
	dp.hitCursor = i
	dp.offset = 0
}

// field renders one "Label: value" line.
func field(label, value string) string {
	return fmt.Sprintf("  %s %s", fieldLabelStyle.Render(label), value)
}

func (dp detailsPane) lines(contentWidth int) []string {
	if dp.finding == nil {
		return []string{"  No finding selected"}
	}
	f := dp.finding

	lines := []string{
		field("Signature:", fieldValueStyle.Render(fmt.Sprintf("%s (%s)", f.SignatureName, f.SignatureID))),
	}
	if f.Pattern != "" {
		lines = append(lines, field("Pattern:", snippetContextStyle.Render(f.Pattern)))
	}
	if f.Arch != "" {
		lines = append(lines, field("Arch:", fieldValueStyle.Render(f.Arch)))
	}
	if len(f.Categories) > 0 {
		lines = append(lines, field("Categories:", fieldValueStyle.Render(strings.Join(f.Categories, ", "))))
	}

	for _, e := range f.Report.Entries() {
		v := renderValue(e.Value)
		if e.Value.Relative {
			v += snippetContextStyle.Render(" (relative)")
		}
		lines = append(lines, field(fmt.Sprintf("%s [%c]:", e.Name, e.Value.Kind.Flag()), v))
	}

	if f.AnnotationStatus != "" {
		lines = append(lines, field("Status:", renderAnnotationStatus(f.AnnotationStatus)))
	}
	if f.Comment != "" {
		lines = append(lines, field("Comment:", fieldValueStyle.Render(f.Comment)))
	}

	lines = append(lines, "")

	h := dp.selectedHit()
	if h == nil {
		return append(lines, "  No hits")
	}
	lines = append(lines,
		"  "+headerRowStyle.Render(fmt.Sprintf("Hit %d/%d (h/l to navigate)", dp.hitCursor+1, len(f.Hits))),
		"  "+strings.Repeat("─", min(40, contentWidth-4)))
	return append(lines, renderHitDetails(h)...)
}

func (dp detailsPane) View() string {
	if dp.width <= 0 || dp.height <= 0 {
		return ""
	}

	lines := dp.lines(dp.width - 2)
	offset := min(dp.offset, max(0, len(lines)-1))
	return frame(" Details ", lines[offset:], dp.width, dp.height, dp.focused)
}

func renderHitDetails(h *hitRow) []string {
	var lines []string

	for _, p := range h.Provenance {
		lines = append(lines, field("Source:", fieldValueStyle.Render(fmt.Sprintf("%s (%s)", p.Path(), p.Kind()))))
	}

	lines = append(lines,
		field("Image:", fieldValueStyle.Render(h.ImageID.Hex()[:12]+"...")),
		field("Region:", fmt.Sprintf("%s at %s (+%#x, %d bytes)",
			fieldValueStyle.Render(h.Region),
			addressStyle.Render(fmt.Sprintf("%#x", h.Location.Address.Start)),
			h.Location.Offset.Start,
			h.Location.Offset.Len())))

	if h.AnnotationStatus != "" {
		lines = append(lines, field("Status:", renderAnnotationStatus(h.AnnotationStatus)))
	}
	if h.Comment != "" {
		lines = append(lines, field("Comment:", fieldValueStyle.Render(h.Comment)))
	}

	if len(h.Disassembly) > 0 {
		lines = append(lines, "", "  "+fieldLabelStyle.Render("Disassembly:"))
		for _, ins := range h.Disassembly {
			lines = append(lines, "    "+fieldValueStyle.Render(ins))
		}
	}

	lines = append(lines, "", "  "+fieldLabelStyle.Render("Bytes:"))
	for _, l := range snippetDump(h) {
		lines = append(lines, "    "+l)
	}

	return lines
}

func (dp detailsPane) visibleRows() int {
	return max(1, dp.height-chrome)
}

func (dp *detailsPane) setSize(w, h int) {
	dp.width = w
	dp.height = h
}
