package explore

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding of the explorer. It implements help.KeyMap so
// the status bar and the help overlay are generated from it.
type keyMap struct {
	Up, Down, Left, Right       key.Binding
	PageUp, PageDown, Home, End key.Binding

	FocusFilters, FocusFindings, FocusDetails, ToggleFilters key.Binding

	ToggleFilter, ResetFilter key.Binding

	Accept, Reject, AcceptNext, RejectNext, Comment, NextOpen key.Binding

	OpenBytes, SortNext, ToggleHelp, Quit, ForceQuit key.Binding
}

func bind(keys []string, shown, desc string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(shown, desc))
}

var defaultKeys = keyMap{
	Up:       bind([]string{"up", "k"}, "k/↑", "up"),
	Down:     bind([]string{"down", "j"}, "j/↓", "down"),
	Left:     bind([]string{"left", "h"}, "h/←", "previous hit / collapse"),
	Right:    bind([]string{"right", "l"}, "l/→", "next hit / expand"),
	PageUp:   bind([]string{"pgup", "ctrl+b"}, "C-b", "page up"),
	PageDown: bind([]string{"pgdown", "ctrl+f"}, "C-f", "page down"),
	Home:     bind([]string{"home", "g"}, "g", "top"),
	End:      bind([]string{"end", "G"}, "G", "bottom"),

	FocusFilters:  bind([]string{"f1"}, "F1", "focus filters"),
	FocusFindings: bind([]string{"f"}, "f", "focus findings"),
	FocusDetails:  bind([]string{"d"}, "d", "focus details"),
	ToggleFilters: bind([]string{"f7"}, "F7", "show/hide filters"),

	ToggleFilter: bind([]string{"x", " ", "enter"}, "x/spc", "toggle value"),
	ResetFilter:  bind([]string{"ctrl+r"}, "C-r", "reset filters"),

	Accept:     bind([]string{"a"}, "a", "accept"),
	Reject:     bind([]string{"r"}, "r", "reject"),
	AcceptNext: bind([]string{"A"}, "A", "accept and next"),
	RejectNext: bind([]string{"R"}, "R", "reject and next"),
	Comment:    bind([]string{"c"}, "c", "comment"),
	NextOpen:   bind([]string{"n"}, "n", "next untriaged"),

	OpenBytes:  bind([]string{"o"}, "o", "hex view"),
	SortNext:   bind([]string{"s"}, "s", "cycle sort"),
	ToggleHelp: bind([]string{"?"}, "?", "help"),
	Quit:       bind([]string{"q"}, "q", "quit"),
	ForceQuit:  bind([]string{"ctrl+c"}, "C-c", "quit"),
}

// ShortHelp is shown in the status bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.FocusFindings, k.FocusDetails, k.Accept, k.Reject, k.NextOpen, k.OpenBytes, k.ToggleHelp}
}

// FullHelp is shown in the help overlay, one column per group.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.PageUp, k.PageDown, k.Home, k.End},
		{k.FocusFilters, k.FocusFindings, k.FocusDetails, k.ToggleFilters, k.ToggleFilter, k.ResetFilter},
		{k.Accept, k.Reject, k.AcceptNext, k.RejectNext, k.Comment, k.NextOpen},
		{k.OpenBytes, k.SortNext, k.ToggleHelp, k.Quit, k.ForceQuit},
	}
}
