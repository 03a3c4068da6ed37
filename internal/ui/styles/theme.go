package styles

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/models"
)

// Theme represents a color scheme for the application
type Theme struct {
	Name string

	// Base colors
	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	// Accent colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// UI element colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
	Cursor      lipgloss.Color
}

// TokyoNight is the default color theme
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7aa2f7"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
	Cursor:      lipgloss.Color("#c0caf5"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth is the maximum content width for list and detail screens
const MaxWidth = 80

// BoardMaxWidth caps the sprintboard, which lays out columns side by side
const BoardMaxWidth = 132

// ContentWidth returns the actual content width to use (min of terminal width and MaxWidth)
func ContentWidth(terminalWidth int) int {
	if terminalWidth > MaxWidth {
		return MaxWidth
	}
	return terminalWidth
}

// BoardWidth is ContentWidth for the sprintboard
func BoardWidth(terminalWidth int) int {
	if terminalWidth > BoardMaxWidth {
		return BoardMaxWidth
	}
	return terminalWidth
}

// CenterView wraps content and centers it horizontally if terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= lipgloss.Width(content) {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// statusColors follow the status badges of the web client
var statusColors = map[models.Status]lipgloss.Color{
	models.StatusDone:           "#28a745",
	models.StatusDoing:          "#007bff",
	models.StatusBacklog:        "#6c757d",
	models.StatusDeprioritized:  "#ffc107",
	models.StatusArchive:        "#17a2b8",
	models.StatusDuplicate:      "#dc3545",
	models.StatusDeadlinePassed: "#dc3545",
}

// StatusColor returns the badge color of status
func StatusColor(status models.Status) lipgloss.Color {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return "#6c757d"
}

// tagPalette is cycled through by tag title so a tag keeps its color
// across runs
var tagPalette = []lipgloss.Color{
	"#f7768e", "#ff9e64", "#e0af68", "#9ece6a", "#73daca",
	"#2ac3de", "#7dcfff", "#7aa2f7", "#bb9af7", "#c0caf5",
}

// TagColor picks a stable color for a tag title
func TagColor(title string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}

// Fade blends fg toward the theme background. opacity 1 keeps fg, 0
// yields the background. Colors that are not #rrggbb are returned as is.
func Fade(fg lipgloss.Color, opacity float64) lipgloss.Color {
	if opacity >= 1 {
		return fg
	}
	if opacity < 0 {
		opacity = 0
	}
	fr, fgG, fb, ok := hexRGB(string(fg))
	br, bg, bb, ok2 := hexRGB(string(Current.Background))
	if !ok || !ok2 {
		return fg
	}
	mix := func(a, b uint64) uint64 {
		return uint64(float64(b) + (float64(a)-float64(b))*opacity + 0.5)
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", mix(fr, br), mix(fgG, bg), mix(fb, bb)))
}

func hexRGB(s string) (r, g, b uint64, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return v >> 16 & 0xff, v >> 8 & 0xff, v & 0xff, true
}

// Styles holds all the pre-computed styles for the UI
type Styles struct {
	// App container
	App lipgloss.Style

	// Title bar
	TitleBar   lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// Lists
	List         lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// Filter bar
	FilterBar    lipgloss.Style
	FilterInput  lipgloss.Style
	FilterButton lipgloss.Style

	// Buttons
	Button        lipgloss.Style
	ButtonFocused lipgloss.Style
	ButtonPrimary lipgloss.Style

	// Tags
	Tag       lipgloss.Style
	TagActive lipgloss.Style

	// Board
	Column        lipgloss.Style
	ColumnFocused lipgloss.Style
	ColumnTitle   lipgloss.Style
	Card          lipgloss.Style
	CardSelected  lipgloss.Style
	Badge         lipgloss.Style

	// Task item
	TaskItem  lipgloss.Style
	TaskTitle lipgloss.Style
	TaskRef   lipgloss.Style

	// Input fields
	Input        lipgloss.Style
	InputFocused lipgloss.Style

	// Help text
	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style

	// Status bar
	StatusBar lipgloss.Style
	Banner    lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		App: lipgloss.NewStyle().
			Background(t.Background).
			Foreground(t.Foreground),

		TitleBar: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Background(t.Background).
			Padding(0, 1).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		TitleMuted: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		List: lipgloss.NewStyle().
			Padding(1, 2),

		ListItem: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 2),

		ListSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Padding(0, 2).
			Bold(true),

		FilterBar: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		FilterInput: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 1),

		FilterButton: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Button: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2),

		ButtonFocused: lipgloss.NewStyle().
			Foreground(t.Primary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 2).
			Bold(true),

		ButtonPrimary: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Primary).
			Padding(0, 2).
			Bold(true),

		Tag: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1).
			MarginRight(1),

		TagActive: lipgloss.NewStyle().
			Padding(0, 1).
			MarginRight(1).
			Bold(true),

		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		ColumnFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		ColumnTitle: lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1),

		Card: lipgloss.NewStyle().
			Foreground(t.Foreground),

		CardSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Foreground(t.Background).
			Padding(0, 1).
			Bold(true),

		TaskItem: lipgloss.NewStyle().
			Padding(0, 1),

		TaskTitle: lipgloss.NewStyle().
			Foreground(t.Foreground),

		TaskRef: lipgloss.NewStyle().
			Foreground(t.Accent),

		Input: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		InputFocused: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		Help: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(1, 2),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		HelpDesc: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		StatusBar: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Banner: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Warning).
			Padding(0, 1),

		Error: lipgloss.NewStyle().
			Foreground(t.Error),
	}
}
