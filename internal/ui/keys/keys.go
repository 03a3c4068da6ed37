package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the screens share. Screens pick the ones
// they need; the same key can mean different things on different screens.
type KeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding // Board: previous column.
	Right key.Binding // Board: next column.
	Enter key.Binding
	Back  key.Binding
	Tab   key.Binding
	Quit  key.Binding
	Help  key.Binding

	// Board
	MoveLeft    key.Binding // Move the task to the previous column's status.
	MoveRight   key.Binding
	PrevSprint  key.Binding
	NextSprint  key.Binding
	Sprints     key.Binding
	Tags        key.Binding
	Stories     key.Binding
	Copy        key.Binding
	CopyMode    key.Binding
	Refresh     key.Binding
	NewTask     key.Binding
	NewStory    key.Binding
	NewSprint   key.Binding
	NewTag      key.Binding
	Bulk        key.Binding
	Solo        key.Binding
	Mute        key.Binding
	ClearFocus  key.Binding
	AllTags     key.Binding
	NoTags      key.Binding
	Toggle      key.Binding
	Continue    key.Binding
	OpenStories key.Binding

	// Task
	Edit     key.Binding
	Describe key.Binding
	Status   key.Binding
	Story    key.Binding
	Comment  key.Binding
	Save     key.Binding
}

// DefaultKeyMap returns the built-in bindings. Vim-style movement sits
// alongside the arrow keys.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next column"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("↵", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys("<", ","),
			key.WithHelp("<", "move left"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys(">", "."),
			key.WithHelp(">", "move right"),
		),
		PrevSprint: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "older sprint"),
		),
		NextSprint: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "newer sprint"),
		),
		Sprints: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "pick sprint"),
		),
		Tags: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter tags"),
		),
		Stories: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "story panel"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy ref"),
		),
		CopyMode: key.NewBinding(
			key.WithKeys("Y"),
			key.WithHelp("Y", "copy mode"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		NewTask: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new task"),
		),
		NewStory: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "new story"),
		),
		NewSprint: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "new sprint"),
		),
		NewTag: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "new tag"),
		),
		Bulk: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "bulk tasks"),
		),
		Solo: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "solo"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		ClearFocus: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "clear solo/mute"),
		),
		AllTags: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all"),
		),
		NoTags: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "none"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		Continue: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "continue into"),
		),
		OpenStories: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "story browser"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "rename"),
		),
		Describe: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "description"),
		),
		Status: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "status"),
		),
		Story: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "parent story"),
		),
		Comment: key.NewBinding(
			key.WithKeys("c", "a"),
			key.WithHelp("c", "comment"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
	}
}

// Label renders a binding as "key desc" for inline help lines
func Label(b key.Binding) (string, string) {
	h := b.Help()
	return h.Key, h.Desc
}
