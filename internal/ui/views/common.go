package views

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/api"
	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/db"
	"github.com/tgienger/todosky/internal/markdown"
	"github.com/tgienger/todosky/internal/page"
	"github.com/tgienger/todosky/internal/ui/styles"
)

// Prefs is the preference storage the board reads and writes
type Prefs interface {
	page.Prefs
	CopyMode() db.CopyMode
	SetCopyMode(mode db.CopyMode) error
}

// Env is what every screen needs from the outside world
type Env struct {
	Ctx      context.Context
	Client   page.Client
	Login    func(ctx context.Context, password string) error
	Bus      broadcast.Publisher
	Prefs    Prefs
	Log      *slog.Logger
	Markdown markdown.Renderer
	Copy     func(text string) error
}

func (e *Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Log
}

// OpenTask asks the app to show the task screen for Ref
type OpenTask struct {
	Ref string
}

// OpenStories asks the app to show the story browser, optionally with
// StoryID opened.
type OpenStories struct {
	StoryID string
}

// BackToBoard asks the app to return to the sprintboard
type BackToBoard struct{}

// LoggedIn is sent once the login screen got a session cookie
type LoggedIn struct{}

// SessionExpired is sent when the server rejects the session cookie
type SessionExpired struct{}

// unauthorized reports whether err is the server refusing the session
func unauthorized(err error) bool {
	var herr *api.HTTPError
	if !errors.As(err, &herr) {
		return false
	}
	return herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden
}

// StatusMsg sets the status line
type StatusMsg struct {
	Text string
	Err  bool
}

// BroadcastMsg carries a change notification from another process
type BroadcastMsg struct {
	Msg broadcast.Message
}

func status(format string, args ...any) tea.Cmd {
	text := fmt.Sprintf(format, args...)
	return func() tea.Msg { return StatusMsg{Text: text} }
}

func failure(what string, err error) tea.Cmd {
	text := what + ": " + err.Error()
	return func() tea.Msg { return StatusMsg{Text: text, Err: true} }
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// truncate cuts s to width cells, marking the cut with an ellipsis
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// helpLine renders "key desc • key desc" from bindings
func helpLine(s *styles.Styles, width int, bindings ...keyHelp) string {
	// At narrow widths, show hint to press ? for help
	if width > 0 && width < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, s.HelpKey.Render(b.key)+" "+b.desc)
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

type keyHelp struct {
	key, desc string
}

func kh(k, desc string) keyHelp { return keyHelp{k, desc} }

func bh(b key.Binding) keyHelp {
	h := b.Help()
	return keyHelp{h.Key, h.Desc}
}

// renderHelpPopup draws the keyboard shortcut overlay
func renderHelpPopup(s *styles.Styles, width, height int, items []keyHelp) string {
	contentWidth := styles.ContentWidth(width)

	lines := []string{s.Title.Render("Keyboard Shortcuts"), ""}
	for _, it := range items {
		lines = append(lines, s.HelpKey.Render(fmt.Sprintf("%-8s", it.key))+" "+it.desc)
	}
	lines = append(lines, "", s.TitleMuted.Render("Press any key to close"))

	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
	return styles.CenterView(centered, width, height)
}
