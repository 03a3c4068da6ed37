package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/todosky/internal/ui/styles"
	"github.com/tgienger/todosky/internal/ui/views"
)

// Screen is the currently active view
type Screen int

const (
	ScreenBoard Screen = iota
	ScreenTask
	ScreenStories
	ScreenLogin
)

// statusTTL is how long a status line stays up
const statusTTL = 5 * time.Second

// Start selects what the app shows first
type Start struct {
	Screen  Screen
	TaskRef string
	StoryID string
	// Password, when set, is used to log in before anything is loaded
	Password string
}

type App struct {
	env    *views.Env
	start  Start
	screen Screen
	// returnTo is shown again after a login
	returnTo Screen

	board   *views.BoardView
	task    *views.TaskView
	stories *views.StoriesView
	login   *views.LoginView

	width  int
	height int

	styles    *styles.Styles
	status    views.StatusMsg
	statusSeq int
}

type statusClearMsg struct {
	seq int
}

type autoLoginMsg struct {
	err error
}

// Creates a new application
func NewApp(env *views.Env, start Start) *App {
	a := &App{
		env:      env,
		start:    start,
		screen:   start.Screen,
		returnTo: start.Screen,
		board:    views.NewBoardView(env),
		styles:   styles.NewStyles(),
	}
	switch start.Screen {
	case ScreenTask:
		a.task = views.NewTaskView(env, start.TaskRef)
	case ScreenStories:
		a.stories = views.NewStoriesView(env, start.StoryID)
	case ScreenLogin:
		a.login = views.NewLoginView(env)
		a.returnTo = ScreenBoard
	}
	return a
}

func (a *App) Init() tea.Cmd {
	if a.start.Password != "" && a.screen != ScreenLogin {
		pass := a.start.Password
		return func() tea.Msg {
			return autoLoginMsg{err: a.env.Login(a.env.Ctx, pass)}
		}
	}
	return a.initScreens()
}

// initScreens starts the board, which always runs for the session
// countdown, plus the screen on top of it
func (a *App) initScreens() tea.Cmd {
	cmds := []tea.Cmd{a.board.Init()}
	switch a.screen {
	case ScreenTask:
		cmds = append(cmds, a.task.Init())
	case ScreenStories:
		cmds = append(cmds, a.stories.Init())
	case ScreenLogin:
		cmds = append(cmds, a.login.Init())
	}
	return tea.Batch(cmds...)
}

// resize re-sends the window size so a freshly switched screen lays out
func (a *App) resize() tea.Cmd {
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: a.width, Height: a.height}
	}
}

func (a *App) show(screen Screen, init tea.Cmd) tea.Cmd {
	a.screen = screen
	return tea.Batch(init, a.resize())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// One line is kept for the status bar
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-1, 1)}
		var cmds []tea.Cmd
		for _, m := range a.models() {
			_, cmd := m.Update(inner)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case autoLoginMsg:
		if msg.err != nil {
			a.returnTo = a.screen
			a.login = views.NewLoginView(a.env)
			a.screen = ScreenLogin
			return a, tea.Batch(a.setStatus(views.StatusMsg{Text: "login: " + msg.err.Error(), Err: true}), a.initScreens())
		}
		return a, a.initScreens()

	case views.StatusMsg:
		return a, a.setStatus(msg)

	case statusClearMsg:
		if msg.seq == a.statusSeq {
			a.status = views.StatusMsg{}
		}
		return a, nil

	case views.OpenTask:
		a.task = views.NewTaskView(a.env, msg.Ref)
		return a, a.show(ScreenTask, a.task.Init())

	case views.OpenStories:
		a.stories = views.NewStoriesView(a.env, msg.StoryID)
		return a, a.show(ScreenStories, a.stories.Init())

	case views.BackToBoard:
		a.task = nil
		a.stories = nil
		return a, a.show(ScreenBoard, a.board.Reload())

	case views.SessionExpired:
		if a.screen == ScreenLogin {
			return a, nil
		}
		a.returnTo = a.screen
		a.login = views.NewLoginView(a.env)
		return a, a.show(ScreenLogin, a.login.Init())

	case views.LoggedIn:
		a.login = nil
		back := a.returnTo
		if (back == ScreenTask && a.task == nil) || (back == ScreenStories && a.stories == nil) || back == ScreenLogin {
			back = ScreenBoard
		}
		cmds := []tea.Cmd{a.board.Reload(), a.setStatus(views.StatusMsg{Text: "logged in"})}
		switch back {
		case ScreenTask:
			cmds = append(cmds, a.task.Init())
		case ScreenStories:
			cmds = append(cmds, a.stories.Init())
		}
		return a, a.show(back, tea.Batch(cmds...))

	case views.BroadcastMsg:
		cmds := []tea.Cmd{a.board.Refresh(msg.Msg)}
		if a.task != nil {
			cmds = append(cmds, a.task.Refresh(msg.Msg))
		}
		if a.stories != nil {
			cmds = append(cmds, a.stories.Refresh())
		}
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		_, cmd := a.active().Update(msg)
		return a, cmd
	}

	// Everything else reaches the board, which owns the session ticker,
	// and the screen on top of it.
	_, cmd := a.board.Update(msg)
	cmds := []tea.Cmd{cmd}
	if a.screen != ScreenBoard {
		_, cmd = a.active().Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) setStatus(msg views.StatusMsg) tea.Cmd {
	a.status = msg
	a.statusSeq++
	seq := a.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusClearMsg{seq: seq} })
}

func (a *App) active() tea.Model {
	switch a.screen {
	case ScreenTask:
		if a.task != nil {
			return a.task
		}
	case ScreenStories:
		if a.stories != nil {
			return a.stories
		}
	case ScreenLogin:
		if a.login != nil {
			return a.login
		}
	}
	return a.board
}

func (a *App) models() []tea.Model {
	out := []tea.Model{a.board}
	if a.task != nil {
		out = append(out, a.task)
	}
	if a.stories != nil {
		out = append(out, a.stories)
	}
	if a.login != nil {
		out = append(out, a.login)
	}
	return out
}

func (a *App) View() string {
	s := a.styles
	line := ""
	if a.status.Text != "" {
		text := truncateLine(a.status.Text, a.width-2)
		if a.status.Err {
			line = s.Error.Render(text)
		} else {
			line = s.StatusBar.Render(text)
		}
	}
	return a.active().View() + "\n" + line
}

// truncateLine keeps the status bar to a single row
func truncateLine(s string, width int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if width > 1 && len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}
