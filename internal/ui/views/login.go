package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/ui/keys"
	"github.com/tgienger/todosky/internal/ui/styles"
)

// LoginView asks for the server password
type LoginView struct {
	env      *Env
	password textinput.Model
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	busy     bool
	err      string
}

func NewLoginView(env *Env) *LoginView {
	in := textinput.New()
	in.Placeholder = "Password"
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	in.CharLimit = 256
	in.Focus()

	return &LoginView{
		env:      env,
		password: in,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
	}
}

type loginResultMsg struct {
	err error
}

func (v *LoginView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.password.Width = clamp(styles.ContentWidth(msg.Width)-12, 20, 40)
		return v, nil

	case loginResultMsg:
		v.busy = false
		if msg.err != nil {
			v.err = msg.err.Error()
			v.password.Reset()
			return v, nil
		}
		v.err = ""
		return v, func() tea.Msg { return LoggedIn{} }

	case tea.KeyMsg:
		if v.busy {
			return v, nil
		}
		switch {
		case msg.String() == "ctrl+c", key.Matches(msg, v.keys.Back):
			return v, tea.Quit
		case msg.Type == tea.KeyEnter:
			pass := strings.TrimSpace(v.password.Value())
			if pass == "" {
				v.err = "password is required"
				return v, nil
			}
			v.busy = true
			return v, func() tea.Msg {
				return loginResultMsg{err: v.env.Login(v.env.Ctx, pass)}
			}
		}
	}

	var cmd tea.Cmd
	v.password, cmd = v.password.Update(msg)
	return v, cmd
}

func (v *LoginView) View() string {
	s := v.styles

	rows := []string{
		s.Title.Render("todosky"),
		s.TitleMuted.Render("Log in to continue"),
		"",
		s.InputFocused.Render(v.password.View()),
	}
	switch {
	case v.busy:
		rows = append(rows, "", s.TitleMuted.Render("Logging in..."))
	case v.err != "":
		rows = append(rows, "", s.Error.Render(v.err))
	}
	rows = append(rows, "", helpLine(s, v.width, kh("enter", "log in"), kh("esc", "quit")))

	centered := lipgloss.Place(styles.ContentWidth(v.width), v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
	return styles.CenterView(centered, v.width, v.height)
}
