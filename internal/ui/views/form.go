package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/ui/keys"
	"github.com/tgienger/todosky/internal/ui/styles"
)

type field struct {
	label     string
	multiline bool
	input     textinput.Model
	area      textarea.Model
}

func textField(label, placeholder, value string) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 0
	in.SetValue(value)
	return field{label: label, input: in}
}

func areaField(label, placeholder, value string) field {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = 0
	ta.SetWidth(50)
	ta.SetHeight(4)
	ta.ShowLineNumbers = false
	ta.SetValue(value)
	return field{label: label, multiline: true, area: ta}
}

// form is a stack of inputs followed by a submit button. Limits are not
// enforced while typing; the server config limits are checked on submit.
type form struct {
	title  string
	note   string
	fields []field
	focus  int // len(fields) is the submit button
	err    string
}

func newForm(title string, fields ...field) *form {
	f := &form{title: title, fields: fields}
	f.updateFocus()
	return f
}

func (f *form) value(i int) string {
	fl := f.fields[i]
	if fl.multiline {
		return strings.TrimSpace(fl.area.Value())
	}
	return strings.TrimSpace(fl.input.Value())
}

func (f *form) updateFocus() {
	for i := range f.fields {
		if f.fields[i].multiline {
			f.fields[i].area.Blur()
		} else {
			f.fields[i].input.Blur()
		}
	}
	if f.focus < len(f.fields) {
		if f.fields[f.focus].multiline {
			f.fields[f.focus].area.Focus()
		} else {
			f.fields[f.focus].input.Focus()
		}
	}
}

func (f *form) setWidth(width int) {
	inputWidth := clamp(styles.ContentWidth(width)-10, 20, 60)
	for i := range f.fields {
		if f.fields[i].multiline {
			f.fields[i].area.SetWidth(inputWidth)
		}
	}
}

// update feeds a key to the form. It reports whether the form was
// submitted or cancelled.
func (f *form) update(msg tea.KeyMsg, km keys.KeyMap) (submitted, cancelled bool, cmd tea.Cmd) {
	n := len(f.fields) + 1
	switch {
	case key.Matches(msg, km.Back):
		return false, true, nil

	case key.Matches(msg, km.Save):
		return true, false, nil

	case msg.String() == "shift+tab":
		f.focus = (f.focus + n - 1) % n
		f.updateFocus()
		return false, false, nil

	case key.Matches(msg, km.Tab):
		f.focus = (f.focus + 1) % n
		f.updateFocus()
		return false, false, nil

	case key.Matches(msg, km.Enter):
		if f.focus == len(f.fields) {
			return true, false, nil
		}
		// Enter inside a textarea is a newline
		if !f.fields[f.focus].multiline {
			f.focus++
			f.updateFocus()
			return false, false, nil
		}
	}

	if f.focus >= len(f.fields) {
		return false, false, nil
	}
	fl := &f.fields[f.focus]
	if fl.multiline {
		fl.area, cmd = fl.area.Update(msg)
	} else {
		fl.input, cmd = fl.input.Update(msg)
	}
	return false, false, cmd
}

func (f *form) view(s *styles.Styles, width, height int) string {
	contentWidth := styles.ContentWidth(width)

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 62)

	rows := []string{s.Title.Render(f.title)}
	if f.note != "" {
		rows = append(rows, s.TitleMuted.Render(f.note))
	}
	for i, fl := range f.fields {
		st := s.Input
		if i == f.focus {
			st = s.InputFocused
		}
		rows = append(rows, "", fl.label+":")
		if fl.multiline {
			rows = append(rows, st.Render(fl.area.View()))
		} else {
			rows = append(rows, st.Width(inputWidth).Render(fl.input.View()))
		}
	}

	btnStyle := s.Button
	if f.focus == len(f.fields) {
		btnStyle = s.ButtonFocused
	}
	rows = append(rows, "", btnStyle.Render(" Save "))
	if f.err != "" {
		rows = append(rows, "", s.Error.Render(f.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, width, height)
}
