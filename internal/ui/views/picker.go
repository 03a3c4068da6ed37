package views

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/ui/styles"
)

type option struct {
	id      string
	label   string
	color   lipgloss.Color
	checked bool
}

// picker is an overlay list. With multi set each row carries a checkbox
// and the caller toggles rows; otherwise the caller takes the row under
// the cursor.
type picker struct {
	title   string
	hint    string
	multi   bool
	options []option
	cursor  int
}

func (p *picker) up() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *picker) down() {
	if p.cursor < len(p.options)-1 {
		p.cursor++
	}
}

func (p *picker) selected() (option, bool) {
	if p.cursor < 0 || p.cursor >= len(p.options) {
		return option{}, false
	}
	return p.options[p.cursor], true
}

// setOptions replaces the rows and keeps the cursor in range
func (p *picker) setOptions(opts []option) {
	p.options = opts
	p.cursor = clamp(p.cursor, 0, max(len(opts)-1, 0))
}

// focus puts the cursor on the row with id, if present
func (p *picker) focus(id string) {
	for i, o := range p.options {
		if o.id == id {
			p.cursor = i
			return
		}
	}
}

func (p *picker) view(s *styles.Styles, width, height int) string {
	contentWidth := styles.ContentWidth(width)

	var items []string
	if len(p.options) == 0 {
		items = append(items, s.TitleMuted.Render("Nothing to choose from"))
	}

	// Keep the cursor on screen when the list is taller than the terminal.
	visible := max(height-10, 3)
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(start+visible, len(p.options))

	for i := start; i < end; i++ {
		o := p.options[i]
		itemStyle := s.ListItem
		if i == p.cursor {
			itemStyle = s.ListSelected
		}
		text := o.label
		if o.color != "" {
			text = lipgloss.NewStyle().Foreground(o.color).Render("●") + " " + text
		}
		if p.multi {
			checkbox := "[ ]"
			if o.checked {
				checkbox = "[x]"
			}
			text = checkbox + " " + text
		}
		items = append(items, itemStyle.Render(truncate(text, contentWidth-10)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(p.title),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		"",
		s.TitleMuted.Render(p.hint),
	)

	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, width, height)
}
