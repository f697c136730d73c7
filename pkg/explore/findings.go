package explore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// sortField defines which column to sort by.
type sortField int

const (
	sortBySignature sortField = iota
	sortByHits
	sortByAddress
	sortByStatus
	sortFieldCount // sentinel
)

var sortFieldNames = [sortFieldCount]string{
	"Signature", "Hits", "Address", "Status",
}

// findingsPane is the top-right findings table.
type findingsPane struct {
	rows    []*findingRow // filtered rows
	total   int           // unfiltered count
	scroll  scroller
	width   int
	height  int
	focused bool
	sortBy  sortField
}

func newFindingsPane(rows []*findingRow) findingsPane {
	fp := findingsPane{rows: rows, total: len(rows)}
	fp.sort()
	return fp
}

func (fp *findingsPane) setFilteredRows(rows []*findingRow) {
	fp.rows = rows
	fp.sort()
	fp.scroll.clamp(len(fp.rows))
}

func (fp findingsPane) selectedFinding() *findingRow {
	if fp.scroll.cursor < 0 || fp.scroll.cursor >= len(fp.rows) {
		return nil
	}
	return fp.rows[fp.scroll.cursor]
}

// selectRow moves the cursor to row i of the table.
func (fp *findingsPane) selectRow(i int) {
	fp.scroll.cursor = i
	fp.scroll.clamp(len(fp.rows))
}

// nextUntriaged moves the cursor to the next finding without an
// annotation, wrapping around. It reports whether one was found.
func (fp *findingsPane) nextUntriaged() bool {
	n := len(fp.rows)
	for i := 1; i <= n; i++ {
		j := (fp.scroll.cursor + i) % n
		if fp.rows[j].AnnotationStatus == "" {
			fp.selectRow(j)
			return true
		}
	}
	return false
}

func (fp findingsPane) Update(msg tea.Msg) (findingsPane, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !fp.focused {
		return fp, nil
	}
	if fp.scroll.move(km, len(fp.rows)) {
		return fp, nil
	}
	switch {
	case key.Matches(km, defaultKeys.SortNext):
		fp.sortBy = (fp.sortBy + 1) % sortFieldCount
		fp.sort()
	case key.Matches(km, defaultKeys.NextOpen):
		fp.nextUntriaged()
	}
	return fp, nil
}

// firstAddress is the address of a finding's first hit.
func firstAddress(f *findingRow) uint64 {
	if len(f.Hits) == 0 {
		return 0
	}
	return f.Hits[0].Location.Address.Start
}

// sort orders rows by the current field. Hit counts sort descending so the
// most widespread findings come first.
func (fp *findingsPane) sort() {
	var less func(a, b *findingRow) bool
	switch fp.sortBy {
	case sortBySignature:
		less = func(a, b *findingRow) bool { return a.SignatureName < b.SignatureName }
	case sortByHits:
		less = func(a, b *findingRow) bool { return a.HitCount > b.HitCount }
	case sortByAddress:
		less = func(a, b *findingRow) bool { return firstAddress(a) < firstAddress(b) }
	case sortByStatus:
		less = func(a, b *findingRow) bool { return a.AnnotationStatus < b.AnnotationStatus }
	default:
		return
	}
	sort.SliceStable(fp.rows, func(i, j int) bool { return less(fp.rows[i], fp.rows[j]) })
}

// columns holds the widths of the table columns for a pane width.
type columns struct {
	signature, report, hits, region, status int
}

func columnsFor(width int) columns {
	c := columns{hits: 6, region: 10, status: 8}
	c.report = min(40, width/3)
	c.signature = max(10, width-c.report-c.hits-c.region-c.status-5)
	return c
}

func (c columns) row(signature, report, hits, region, status string) string {
	return fmt.Sprintf(" %s %s %*s %s %s",
		fit(signature, c.signature), fit(report, c.report), c.hits, hits, fit(region, c.region), status)
}

func (fp findingsPane) View() string {
	if fp.width <= 0 || fp.height <= 0 {
		return ""
	}
	inner := fp.width - 2
	cols := columnsFor(inner)

	mark := func(f sortField, label string) string {
		if fp.sortBy == f {
			return label + " ^"
		}
		return label
	}
	body := []string{
		headerRowStyle.Render(cols.row(mark(sortBySignature, "Signature"), mark(sortByAddress, "Report"),
			mark(sortByHits, "Hits"), "Region", mark(sortByStatus, "Status"))),
		strings.Repeat("─", inner),
	}

	lo, hi := fp.scroll.window(len(fp.rows))
	for i := lo; i < hi; i++ {
		f := fp.rows[i]
		region := ""
		if len(f.Regions) > 0 {
			region = f.Regions[0]
			if len(f.Regions) > 1 {
				region += "+"
			}
		}
		line := cols.row(f.SignatureName, formatReport(f.Report), fmt.Sprint(f.HitCount), region,
			renderAnnotationStatus(f.AnnotationStatus))
		if i == fp.scroll.cursor && fp.focused {
			line = highlight(line, inner)
		}
		body = append(body, line)
	}

	title := fmt.Sprintf(" Findings (%d/%d) [sort: %s] ", len(fp.rows), fp.total, sortFieldNames[fp.sortBy])
	return frame(title, body, fp.width, fp.height, fp.focused)
}

func (fp *findingsPane) setSize(w, h int) {
	fp.width = w
	fp.height = h
	fp.scroll.rows = max(1, h-chrome-2) // header and rule
	fp.scroll.clamp(len(fp.rows))
}
