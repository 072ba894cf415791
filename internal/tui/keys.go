package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keybindings
type KeyMap struct {
	Left        key.Binding
	Right       key.Binding
	Up          key.Binding
	Down        key.Binding
	MoveBack    key.Binding
	MoveForward key.Binding
	Enter       key.Binding
	Back        key.Binding
	Tab         key.Binding
	Toggle      key.Binding
	Approve     key.Binding
	Reject      key.Binding
	Refresh     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = KeyMap{
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column left")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column right")),
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	MoveBack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
	MoveForward: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
	Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open task")),
	Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Toggle:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "enable/disable")),
	Approve:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "approve")),
	Reject:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reject")),
	Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.MoveBack, k.MoveForward, k.Refresh, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MoveBack, k.MoveForward, k.Enter, k.Back},
		{k.Toggle, k.Approve, k.Reject},
		{k.Tab, k.Refresh, k.Help, k.Quit},
	}
}

// viewHelp is the short help line for one view
func (k KeyMap) viewHelp(v View) []key.Binding {
	switch v {
	case ViewTask:
		return []key.Binding{k.Up, k.Down, k.Back, k.Quit}
	case ViewCron:
		return []key.Binding{k.Up, k.Down, k.Toggle, k.Tab, k.Refresh, k.Quit}
	case ViewRequests:
		return []key.Binding{k.Up, k.Down, k.Approve, k.Reject, k.Tab, k.Refresh, k.Quit}
	default:
		return k.ShortHelp()
	}
}
