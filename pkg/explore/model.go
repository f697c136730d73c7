package explore

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// focusedPane tracks which pane has keyboard focus.
type focusedPane int

const (
	paneFilters focusedPane = iota
	paneFindings
	paneDetails
)

// overlay tracks which modal overlay is active.
type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayBytes
	overlayComment
)

// Annotation targets for the comment overlay.
const (
	targetFinding = "finding"
	targetHit     = "hit"
)

// rect is a screen area in cells.
type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// Model is the root Bubble Tea model for the explore TUI.
type Model struct {
	data     *exploreData
	filters  filterPane
	findings findingsPane
	details  detailsPane
	help     help.Model

	focus         focusedPane
	activeOverlay overlay
	showFilters   bool

	// overlay text and its scroll position, shared by help and hex views
	overlayTitle string
	overlayLines []string
	overlayTop   int

	comment       textinput.Model
	commentTarget string // targetFinding or targetHit
	commentID     string

	width  int
	height int
	err    error
}

// New loads the datastore at datastorePath and builds the initial model.
func New(datastorePath string) (Model, error) {
	data, err := loadData(datastorePath)
	if err != nil {
		return Model{}, err
	}

	comment := textinput.New()
	comment.Prompt = "> "
	comment.CharLimit = 512

	m := Model{
		data:        data,
		filters:     newFilterPane(buildFacets(data.findings)),
		findings:    newFindingsPane(data.findings),
		details:     newDetailsPane(),
		help:        help.New(),
		comment:     comment,
		showFilters: true,
	}
	m.help.Styles = helpStyles()
	m.setFocus(paneFindings)
	m.syncDetails()
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("sigscan explore")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.MouseMsg:
		if m.activeOverlay == overlayNone && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.click(msg.X, msg.Y)
		}
		return m, nil

	case tea.KeyMsg:
		if m.activeOverlay != overlayNone {
			return m.updateOverlay(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, defaultKeys.Quit, defaultKeys.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, defaultKeys.ToggleHelp):
		m.openOverlay(overlayHelp, "Help", strings.Split(m.renderHelp(), "\n"))
		return m, nil
	case key.Matches(msg, defaultKeys.ToggleFilters):
		m.showFilters = !m.showFilters
		if !m.showFilters && m.focus == paneFilters {
			m.setFocus(paneFindings)
		}
		m.resize()
		return m, nil
	case key.Matches(msg, defaultKeys.FocusFilters):
		if m.showFilters {
			m.setFocus(paneFilters)
		}
		return m, nil
	case key.Matches(msg, defaultKeys.FocusFindings):
		m.setFocus(paneFindings)
		return m, nil
	case key.Matches(msg, defaultKeys.FocusDetails):
		m.setFocus(paneDetails)
		return m, nil
	}

	if m.focus != paneFilters {
		switch {
		case key.Matches(msg, defaultKeys.Accept):
			m.setAnnotation("accept")
			return m, nil
		case key.Matches(msg, defaultKeys.Reject):
			m.setAnnotation("reject")
			return m, nil
		case key.Matches(msg, defaultKeys.AcceptNext):
			m.setAnnotation("accept")
			m.moveNext()
			return m, nil
		case key.Matches(msg, defaultKeys.RejectNext):
			m.setAnnotation("reject")
			m.moveNext()
			return m, nil
		case key.Matches(msg, defaultKeys.Comment):
			return m, m.startComment()
		case key.Matches(msg, defaultKeys.OpenBytes):
			m.openBytes()
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case paneFilters:
		m.filters, cmd = m.filters.Update(msg)
		m.applyFilters()
	case paneFindings:
		before := m.findings.selectedFinding()
		m.findings, cmd = m.findings.Update(msg)
		if m.findings.selectedFinding() != before {
			m.syncDetails()
		}
	case paneDetails:
		m.details, cmd = m.details.Update(msg)
	}
	return m, cmd
}

func (m Model) updateOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.activeOverlay == overlayComment {
		switch msg.Type {
		case tea.KeyEnter:
			m.saveComment()
			m.closeOverlay()
			return m, nil
		case tea.KeyEsc, tea.KeyCtrlC:
			m.closeOverlay()
			return m, nil
		}
		var cmd tea.Cmd
		m.comment, cmd = m.comment.Update(msg)
		return m, cmd
	}

	page := max(1, m.height/2)
	switch {
	case key.Matches(msg, defaultKeys.Quit, defaultKeys.ForceQuit, defaultKeys.ToggleHelp, defaultKeys.OpenBytes):
		m.closeOverlay()
	case key.Matches(msg, defaultKeys.Down):
		m.overlayTop++
	case key.Matches(msg, defaultKeys.Up):
		m.overlayTop--
	case key.Matches(msg, defaultKeys.PageDown):
		m.overlayTop += page
	case key.Matches(msg, defaultKeys.PageUp):
		m.overlayTop -= page
	case key.Matches(msg, defaultKeys.Home):
		m.overlayTop = 0
	}
	m.overlayTop = max(0, min(m.overlayTop, len(m.overlayLines)-1))
	return m, nil
}

func (m *Model) openOverlay(o overlay, title string, lines []string) {
	m.activeOverlay = o
	m.overlayTitle = title
	m.overlayLines = lines
	m.overlayTop = 0
}

func (m *Model) closeOverlay() {
	m.activeOverlay = overlayNone
	m.comment.Blur()
}

// =============================================================================
// LAYOUT
// =============================================================================

// panes splits the screen above the status bar: filters on the left when
// shown, findings over details on the right.
func (m Model) panes() (filters, findings, details rect) {
	h := max(0, m.height-2)
	x := 0
	if m.showFilters {
		filters = rect{0, 0, min(m.width*30/100, 50), h}
		x = filters.w
	}
	top := h * 40 / 100
	findings = rect{x, 0, m.width - x, top}
	details = rect{x, top, m.width - x, h - top}
	return filters, findings, details
}

func (m *Model) resize() {
	f, fi, d := m.panes()
	m.filters.setSize(f.w, f.h)
	m.findings.setSize(fi.w, fi.h)
	m.details.setSize(d.w, d.h)
	m.help.Width = m.width
}

func (m *Model) click(x, y int) {
	f, fi, d := m.panes()
	switch {
	case m.showFilters && f.contains(x, y):
		m.setFocus(paneFilters)
		// title and top border
		if row := y - f.y - 2 + m.filters.scroll.offset; row >= 0 && row < len(m.filters.rows) {
			m.filters.scroll.cursor = row
			m.filters.toggleCurrent()
			m.applyFilters()
		}
	case fi.contains(x, y):
		m.setFocus(paneFindings)
		// title, top border, header and rule
		if row := y - fi.y - 4 + m.findings.scroll.offset; row >= 0 && row < len(m.findings.rows) {
			m.findings.selectRow(row)
			m.syncDetails()
		}
	case d.contains(x, y):
		m.setFocus(paneDetails)
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.activeOverlay != overlayNone {
		return m.renderOverlay()
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.findings.View(), m.details.View())
	main := right
	if m.showFilters {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.filters.View(), right)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := fmt.Sprintf(" %d findings | %d shown", len(m.data.findings), len(m.findings.rows))
	if m.err != nil {
		status += " | " + m.err.Error()
	}
	left := statusBarStyle.Render(status)
	right := m.help.ShortHelpView(defaultKeys.ShortHelp())
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderOverlay() string {
	w := m.width * 80 / 100
	h := m.height * 80 / 100

	var title, content string
	switch m.activeOverlay {
	case overlayComment:
		title = " Comment (enter to save, esc to cancel) "
		w, h = min(60, m.width-4), 5
		content = "\n" + m.comment.View()
	default:
		title = fmt.Sprintf(" %s (q to close) ", m.overlayTitle)
		rows := max(1, h-4)
		end := min(m.overlayTop+rows, len(m.overlayLines))
		content = strings.Join(m.overlayLines[m.overlayTop:end], "\n")
		if len(m.overlayLines) == 0 {
			content = "  Nothing to show"
		}
	}

	box := modalStyle.Width(w - 4).Height(h - 2).Render(content)
	view := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), box)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, view)
}

func (m Model) renderHelp() string {
	return "sigscan explore: triage signature findings\n\n" +
		m.help.FullHelpView(defaultKeys.FullHelp()) + "\n\n" +
		"Filters combine with OR inside a facet and AND across facets.\n" +
		"a/r on a finding or hit toggles its status; the same key again clears it.\n" +
		"o shows the stored image around the hit when the scan kept images,\n" +
		"otherwise the bytes recorded with the hit."
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) setFocus(p focusedPane) {
	m.focus = p
	m.filters.focused = p == paneFilters
	m.findings.focused = p == paneFindings
	m.details.focused = p == paneDetails
}

// syncDetails shows the finding under the findings cursor.
func (m *Model) syncDetails() {
	m.details.setFinding(m.findings.selectedFinding())
}

func (m *Model) applyFilters() {
	var rows []*findingRow
	for _, f := range m.data.findings {
		if m.filters.facets.matchesFinding(f) {
			rows = append(rows, f)
		}
	}
	m.findings.setFilteredRows(rows)
	m.filters.facets.updateCounts(m.data.findings)
	m.syncDetails()
}

// toggleStatus returns status, or "" when it is already set.
func toggleStatus(current, status string) string {
	if current == status {
		return ""
	}
	return status
}

func (m *Model) setAnnotation(status string) {
	switch m.focus {
	case paneFindings:
		f := m.findings.selectedFinding()
		if f == nil {
			return
		}
		f.AnnotationStatus = toggleStatus(f.AnnotationStatus, status)
		m.err = m.data.setFindingAnnotation(f.FindingID, f.AnnotationStatus, f.Comment)
	case paneDetails:
		h := m.details.selectedHit()
		if h == nil {
			return
		}
		h.AnnotationStatus = toggleStatus(h.AnnotationStatus, status)
		m.err = m.data.setHitAnnotation(h.StructuralID, h.AnnotationStatus, h.Comment)
	}
	m.filters.facets.updateCounts(m.data.findings)
}

func (m *Model) moveNext() {
	switch m.focus {
	case paneFindings:
		m.findings.selectRow(m.findings.scroll.cursor + 1)
		m.syncDetails()
	case paneDetails:
		m.details.selectHit(m.details.hitCursor + 1)
	}
}

func (m *Model) startComment() tea.Cmd {
	switch m.focus {
	case paneFindings:
		f := m.findings.selectedFinding()
		if f == nil {
			return nil
		}
		m.commentTarget, m.commentID = targetFinding, f.FindingID
		m.comment.SetValue(f.Comment)
	case paneDetails:
		h := m.details.selectedHit()
		if h == nil {
			return nil
		}
		m.commentTarget, m.commentID = targetHit, h.StructuralID
		m.comment.SetValue(h.Comment)
	default:
		return nil
	}
	m.activeOverlay = overlayComment
	return m.comment.Focus()
}

func (m *Model) saveComment() {
	text := strings.TrimSpace(m.comment.Value())
	switch m.commentTarget {
	case targetFinding:
		if f := m.findings.selectedFinding(); f != nil && f.FindingID == m.commentID {
			f.Comment = text
			m.err = m.data.setFindingAnnotation(f.FindingID, f.AnnotationStatus, f.Comment)
		}
	case targetHit:
		if h := m.details.selectedHit(); h != nil && h.StructuralID == m.commentID {
			h.Comment = text
			m.err = m.data.setHitAnnotation(h.StructuralID, h.AnnotationStatus, h.Comment)
		}
	}
}

// openBytes shows a hex view of the selected hit. The stored image is used
// when the datastore kept one; otherwise the hit's snippet.
func (m *Model) openBytes() {
	h := m.details.selectedHit()
	if h == nil {
		return
	}

	title, lines := "Snippet", snippetDump(h)
	if m.data.images != nil {
		if content, err := m.data.images.Get(h.ImageID); err == nil {
			if img, err := imageFor(content, h); err == nil {
				if base, data := hexWindow(img, h); len(data) > 0 {
					title = fmt.Sprintf("%s %#x", h.Region, h.Location.Address.Start)
					lines = renderHexDump(base, data, span{h.Location.Address.Start, h.Location.Address.End})
				}
			}
		}
	}
	m.openOverlay(overlayBytes, title, lines)
}

// Close releases resources held by the model.
func (m *Model) Close() error {
	if m.data != nil {
		return m.data.close()
	}
	return nil
}
