package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/page"
	"github.com/tgienger/todosky/internal/ui/keys"
	"github.com/tgienger/todosky/internal/ui/styles"
)

type storyItem struct {
	story  models.Story
	sprint string
}

func (i storyItem) Title() string       { return i.story.Title }
func (i storyItem) Description() string { return i.sprint }
func (i storyItem) FilterValue() string { return i.story.Title + " " + i.sprint }

type storyDelegate struct {
	styles *styles.Styles
	width  int
}

func (d storyDelegate) Height() int                               { return 2 }
func (d storyDelegate) Spacing() int                              { return 1 }
func (d storyDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d storyDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(storyItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	dot := lipgloss.NewStyle().Foreground(styles.StatusColor(it.story.Status)).Render("●")
	title := titleStyle.Render(dot + " " + truncate(it.Title(), width-4))
	desc := descStyle.Render(truncate(it.Description(), width-2))

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

// StoriesView browses every story by sprint and shows one story in detail
type StoriesView struct {
	env      *Env
	page     *page.StoriesPage
	list     list.Model
	delegate *storyDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool

	// initial is opened once the stories are loaded
	initial string

	detail   *page.StoryDetail
	viewport viewport.Model

	showHelpPopup bool
}

func NewStoriesView(env *Env, storyID string) *StoriesView {
	s := styles.NewStyles()

	// Setup custom delegate
	delegate := &storyDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Stories"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &StoriesView{
		env:      env,
		page:     page.NewStoriesPage(env.Client, env.logger()),
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		initial:  storyID,
		viewport: viewport.New(80, 20),
	}
}

type storiesLoadedMsg struct {
	report page.Report
}

func (v *StoriesView) Init() tea.Cmd {
	return v.load
}

func (v *StoriesView) load() tea.Msg {
	return storiesLoadedMsg{report: v.page.Load(v.env.Ctx)}
}

// Refresh reloads everything; the browser has no finer-grained state
func (v *StoriesView) Refresh() tea.Cmd {
	return v.load
}

func (v *StoriesView) setItems() {
	var items []list.Item
	for _, g := range v.page.Groups() {
		label := "unknown sprint"
		if g.Sprint != nil {
			label = g.Sprint.String()
		}
		for _, story := range g.Stories {
			items = append(items, storyItem{story: story, sprint: label + " • " + string(story.Status)})
		}
	}
	v.list.SetItems(items)
}

func (v *StoriesView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		v.viewport.Width = max(contentWidth-4, 20)
		v.viewport.Height = max(msg.Height-8, 5)
		if v.detail != nil {
			v.openDetail(v.detail.Story.ID)
		}
		return v, nil

	case storiesLoadedMsg:
		v.loaded = true
		v.setItems()
		if v.initial != "" {
			v.selectStory(v.initial)
			v.openDetail(v.initial)
			v.initial = ""
		} else if v.detail != nil {
			v.openDetail(v.detail.Story.ID)
		}
		if msg.report.Failed() {
			return v, failure("load stories", msg.report.Err())
		}
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.detail != nil {
			return v.updateDetail(msg)
		}
		// Typing a filter owns the keyboard
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			if v.list.FilterState() == list.FilterApplied {
				v.list.ResetFilter()
				return v, nil
			}
			return v, func() tea.Msg { return BackToBoard{} }
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Refresh):
			return v, v.load
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(storyItem); ok {
				v.openDetail(item.story.ID)
			}
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *StoriesView) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Back):
		v.detail = nil
		return v, nil
	case key.Matches(msg, v.keys.Refresh):
		return v, v.load
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *StoriesView) selectStory(id string) {
	for i, it := range v.list.Items() {
		if si, ok := it.(storyItem); ok && si.story.ID == id {
			v.list.Select(i)
			return
		}
	}
}

func (v *StoriesView) openDetail(id string) {
	d, ok := v.page.Detail(id)
	if !ok {
		v.detail = nil
		return
	}
	v.detail = &d
	v.viewport.SetContent(v.renderDetail(d))
	v.viewport.GotoTop()
}

func (v *StoriesView) renderDetail(d page.StoryDetail) string {
	s := v.styles
	md := v.env.Markdown
	md.Width = v.viewport.Width
	md.Resolve = v.page.Cache.TaskBySqid

	var b strings.Builder

	sprint := "unknown sprint"
	if d.Sprint != nil {
		sprint = d.Sprint.String()
	}
	b.WriteString(s.TitleMuted.Render(sprint) + "\n\n")

	if len(d.Tags) > 0 {
		chips := make([]string, 0, len(d.Tags))
		for _, t := range d.Tags {
			chips = append(chips, s.Tag.Foreground(styles.TagColor(t.Title)).Render(t.Title))
		}
		b.WriteString(strings.Join(chips, " ") + "\n\n")
	}

	if strings.TrimSpace(d.Story.Description) != "" {
		b.WriteString(md.Render(d.Story.Description) + "\n\n")
	}

	b.WriteString(s.Title.Render(fmt.Sprintf("Tasks (%d)", len(d.Tasks))) + "\n")
	for _, t := range d.Tasks {
		dot := lipgloss.NewStyle().Foreground(styles.StatusColor(t.Status)).Render("●")
		b.WriteString(fmt.Sprintf("%s %s %s\n", dot, s.TaskRef.Render(t.Sqid), t.Title))
	}

	related := func(label string, stories []models.Story) {
		if len(stories) == 0 {
			return
		}
		b.WriteString("\n" + s.Title.Render(label) + "\n")
		for _, st := range stories {
			line := st.Title
			if sp, ok := v.page.Cache.Sprint(st.SprintID); ok {
				line += "  " + s.TitleMuted.Render(sp.String())
			}
			b.WriteString(line + "\n")
		}
	}
	related("Continued from", d.ContinuedFrom)
	related("Continued by", d.ContinuedBy)

	return b.String()
}

func (v *StoriesView) View() string {
	if v.showHelpPopup {
		k := v.keys
		return renderHelpPopup(v.styles, v.width, v.height, []keyHelp{
			bh(k.Up), bh(k.Down), bh(k.Enter), kh("/", "filter"),
			bh(k.Refresh), bh(k.Back), bh(k.Quit),
		})
	}

	s := v.styles
	if !v.loaded {
		return s.TitleMuted.Render("Loading...")
	}

	var content string
	if v.detail != nil {
		badge := s.Badge.Background(styles.StatusColor(v.detail.Story.Status)).Render(string(v.detail.Story.Status))
		content = lipgloss.JoinVertical(lipgloss.Left,
			s.Title.Render(v.detail.Story.Title)+" "+badge,
			v.viewport.View(),
			helpLine(s, v.width, kh("j/k", "scroll"), bh(v.keys.Back), bh(v.keys.Quit)),
		)
	} else {
		footer := helpLine(s, v.width, bh(v.keys.Enter), kh("/", "filter"), bh(v.keys.Back), bh(v.keys.Quit))
		if errs := v.page.Errors(); len(errs) > 0 {
			footer = s.Error.Render(fmt.Sprintf("%d requests failed", len(errs))) + "\n" + footer
		}
		content = lipgloss.JoinVertical(lipgloss.Left, v.list.View(), footer)
	}

	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}
