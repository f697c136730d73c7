package explore

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

var (
	colorBlue  = lipgloss.Color("#1f6feb")
	colorGreen = lipgloss.Color("10")
	colorGold  = lipgloss.Color("#D4AF37")
	colorRed   = lipgloss.Color("9")
	colorGray  = lipgloss.Color("8")
	colorCyan  = lipgloss.Color("#11C3DB")
	colorWhite = lipgloss.Color("15")
)

var (
	paneBorder          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	activeBorderStyle   = paneBorder.BorderForeground(colorBlue)
	inactiveBorderStyle = paneBorder.BorderForeground(colorGray)
	modalStyle          = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(colorBlue).Padding(1, 2)

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorWhite).Background(colorBlue).Padding(0, 1)
	headerRowStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	selectedRowStyle = lipgloss.NewStyle().Background(lipgloss.Color("17")).Foreground(colorWhite)
	statusBarStyle   = lipgloss.NewStyle().Foreground(colorGray)

	// hex and snippet bytes
	snippetMatchStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorGold)
	snippetContextStyle = lipgloss.NewStyle().Foreground(colorGray)

	addressStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	integerStyle = lipgloss.NewStyle().Foreground(colorGold)

	facetLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	facetSelectedStyle = lipgloss.NewStyle().Foreground(colorGreen)
	facetCountStyle    = lipgloss.NewStyle().Foreground(colorGray)

	fieldLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	fieldValueStyle = lipgloss.NewStyle().Foreground(colorWhite)
)

var statusStyles = map[string]lipgloss.Style{
	"accept": lipgloss.NewStyle().Bold(true).Foreground(colorGreen),
	"reject": lipgloss.NewStyle().Bold(true).Foreground(colorRed),
}

// helpStyles colors key bindings in the status bar and help overlay.
func helpStyles() help.Styles {
	s := help.New().Styles
	s.ShortKey = lipgloss.NewStyle().Foreground(colorCyan)
	s.ShortDesc = statusBarStyle
	s.FullKey = s.ShortKey
	s.FullDesc = statusBarStyle
	return s
}

// renderValue styles a report value; addresses and call targets stand out
// from plain integers.
func renderValue(v pattern.Value) string {
	if v.Kind == pattern.RecordAddress || v.Kind == pattern.RecordCall {
		return addressStyle.Render(v.String())
	}
	return integerStyle.Render(v.String())
}

func renderAnnotationStatus(status string) string {
	if st, ok := statusStyles[status]; ok {
		return st.Render(status)
	}
	return ""
}
