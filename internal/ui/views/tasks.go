package views

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/page"
	"github.com/tgienger/todosky/internal/ui/keys"
	"github.com/tgienger/todosky/internal/ui/styles"
)

type taskMode int

const (
	taskNormal taskMode = iota
	taskHelp
	taskComment
	taskRename
	taskDescribe
	taskStatusPicker
	taskStoryPicker
)

// noStory is the story picker row that detaches the task
const noStory = ""

// TaskView shows one task with its story, description and comments
type TaskView struct {
	env    *Env
	page   *page.TaskPage
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int
	loaded bool

	mode     taskMode
	viewport viewport.Model
	picker   *picker
	form     *form

	// Comment selection and the comment editor. editingComment is the
	// id being edited, 0 while writing a new comment.
	commentCursor  int
	commentInput   textarea.Model
	editingComment int
}

func NewTaskView(env *Env, ref string) *TaskView {
	commentInput := textarea.New()
	commentInput.Placeholder = "Add a comment (markdown)..."
	commentInput.CharLimit = 0
	commentInput.SetWidth(50)
	commentInput.SetHeight(4)
	commentInput.ShowLineNumbers = false

	return &TaskView{
		env:           env,
		page:          page.NewTaskPage(env.Client, env.Bus, env.logger(), ref),
		styles:        styles.NewStyles(),
		keys:          keys.DefaultKeyMap(),
		viewport:      viewport.New(80, 20),
		commentInput:  commentInput,
		commentCursor: -1,
	}
}

type taskLoadedMsg struct {
	report page.Report
}

type taskRefreshedMsg struct {
	reloaded bool
	err      error
}

type taskMutatedMsg struct {
	what string
	note string
	err  error
}

func (v *TaskView) Init() tea.Cmd {
	return v.load
}

func (v *TaskView) load() tea.Msg {
	return taskLoadedMsg{report: v.page.Load(v.env.Ctx)}
}

// Refresh reloads the task when msg concerns it
func (v *TaskView) Refresh(msg broadcast.Message) tea.Cmd {
	return func() tea.Msg {
		ok, err := v.page.Refresh(v.env.Ctx, msg)
		return taskRefreshedMsg{reloaded: ok, err: err}
	}
}

func (v *TaskView) mutate(what string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		note, err := fn(v.env.Ctx)
		return taskMutatedMsg{what: what, note: note, err: err}
	}
}

func (v *TaskView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.commentInput.SetWidth(clamp(contentWidth-10, 20, 70))
		if v.form != nil {
			v.form.setWidth(msg.Width)
		}
		v.layout()
		return v, nil

	case taskLoadedMsg:
		v.loaded = true
		v.layout()
		if msg.report.Failed() {
			return v, failure("load task", msg.report.Err())
		}
		return v, nil

	case taskRefreshedMsg:
		if msg.reloaded {
			v.layout()
		}
		if msg.err != nil {
			return v, failure("refresh task", msg.err)
		}
		return v, nil

	case taskMutatedMsg:
		v.layout()
		if msg.err != nil {
			return v, failure(msg.what, msg.err)
		}
		if msg.note != "" {
			return v, status("%s", msg.note)
		}
		return v, nil

	case tea.KeyMsg:
		switch v.mode {
		case taskHelp:
			v.mode = taskNormal
			return v, nil
		case taskComment:
			return v.updateComment(msg)
		case taskRename, taskDescribe:
			return v.updateForm(msg)
		case taskStatusPicker, taskStoryPicker:
			return v.updatePicker(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *TaskView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := v.page.Task()

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToBoard{} }
	case key.Matches(msg, v.keys.Help):
		v.mode = taskHelp
		return v, nil
	case key.Matches(msg, v.keys.Refresh):
		return v, v.load
	case !ok:
		return v, nil

	case key.Matches(msg, v.keys.Status):
		v.openStatusPicker(t)
		return v, nil
	case key.Matches(msg, v.keys.Story):
		v.openStoryPicker(t)
		return v, nil
	case key.Matches(msg, v.keys.Edit):
		v.mode = taskRename
		v.form = newForm("Rename Task", textField("Title", "Task title", t.Title))
		v.form.setWidth(v.width)
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Describe):
		v.mode = taskDescribe
		v.form = newForm("Edit Description", areaField("Description", "Description (markdown)", t.Description))
		v.form.setWidth(v.width)
		return v, textarea.Blink
	case key.Matches(msg, v.keys.Comment):
		v.mode = taskComment
		v.editingComment = 0
		v.commentInput.Reset()
		return v, v.commentInput.Focus()
	case msg.String() == "E":
		comments := v.page.Comments()
		if v.commentCursor < 0 || v.commentCursor >= len(comments) {
			return v, status("select a comment with tab first")
		}
		c := comments[v.commentCursor]
		v.mode = taskComment
		v.editingComment = c.ID
		v.commentInput.SetValue(c.Text)
		return v, v.commentInput.Focus()
	case key.Matches(msg, v.keys.Tab), msg.String() == "shift+tab":
		n := len(v.page.Comments())
		if n == 0 {
			return v, nil
		}
		if msg.String() == "shift+tab" {
			v.commentCursor = (v.commentCursor + n + 1) % (n + 1)
		} else {
			v.commentCursor = (v.commentCursor + 2) % (n + 1)
		}
		v.commentCursor--
		v.layout()
		return v, nil
	case key.Matches(msg, v.keys.Copy):
		ref := v.env.Prefs.CopyMode().Format(t.Sqid)
		if v.env.Copy == nil {
			return v, status("%s", ref)
		}
		if err := v.env.Copy(ref); err != nil {
			return v, failure("copy", err)
		}
		return v, status("copied %s", ref)
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *TaskView) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = taskNormal
		v.commentInput.Blur()
		return v, nil
	case key.Matches(msg, v.keys.Save):
		return v, v.submitComment()
	}
	var cmd tea.Cmd
	v.commentInput, cmd = v.commentInput.Update(msg)
	return v, cmd
}

// submitComment posts the editor content as a new comment or as the new
// text of the comment being edited
func (v *TaskView) submitComment() tea.Cmd {
	text := strings.TrimSpace(v.commentInput.Value())
	if text == "" {
		return nil
	}
	id := v.editingComment

	// Clear the input
	v.commentInput.Reset()
	v.commentInput.Blur()
	v.mode = taskNormal

	if id == 0 {
		return v.mutate("add comment", func(ctx context.Context) (string, error) {
			return "comment added", v.page.AddComment(ctx, text)
		})
	}
	return v.mutate("edit comment", func(ctx context.Context) (string, error) {
		res, err := v.page.EditComment(ctx, id, text)
		if res.Skipped {
			return "nothing changed", err
		}
		return "comment saved", err
	})
}

func (v *TaskView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	submitted, cancelled, cmd := v.form.update(msg, v.keys)
	if cancelled {
		v.mode = taskNormal
		v.form = nil
		return v, nil
	}
	if !submitted {
		return v, cmd
	}

	value := v.form.value(0)
	mode := v.mode
	v.mode = taskNormal
	v.form = nil
	if mode == taskRename {
		return v, v.mutate("rename task", func(ctx context.Context) (string, error) {
			_, err := v.page.Rename(ctx, value)
			return "", err
		})
	}
	return v, v.mutate("edit description", func(ctx context.Context) (string, error) {
		_, err := v.page.Describe(ctx, value)
		return "", err
	})
}

func (v *TaskView) openStatusPicker(t models.Task) {
	v.mode = taskStatusPicker
	v.picker = &picker{title: "Status", hint: "↵: set • esc: cancel"}
	var opts []option
	for _, s := range models.Statuses() {
		opts = append(opts, option{id: string(s), label: string(s), color: styles.StatusColor(s)})
	}
	v.picker.setOptions(opts)
	v.picker.focus(string(t.Status))
}

func (v *TaskView) openStoryPicker(t models.Task) {
	v.mode = taskStoryPicker
	v.picker = &picker{title: "Parent story", hint: "↵: set • esc: cancel"}

	sprints := v.page.Cache.Sprints()
	order := map[string]int{}
	for i, s := range page.SortSprints(sprints) {
		order[s.ID] = i
	}
	stories := make([]models.Story, 0)
	for _, s := range v.page.Cache.Stories() {
		stories = append(stories, s)
	}
	sort.Slice(stories, func(i, j int) bool {
		oi, ok1 := order[stories[i].SprintID]
		oj, ok2 := order[stories[j].SprintID]
		if ok1 != ok2 {
			return ok1
		}
		if oi != oj {
			return oi < oj
		}
		return stories[i].Title < stories[j].Title
	})

	opts := []option{{id: noStory, label: "(no story)"}}
	for _, s := range stories {
		label := s.Title
		if sp, ok := sprints[s.SprintID]; ok {
			label += "  " + sp.String()
		}
		opts = append(opts, option{id: s.ID, label: label, color: styles.StatusColor(s.Status)})
	}
	v.picker.setOptions(opts)
	if t.StoryID != nil {
		v.picker.focus(*t.StoryID)
	}
}

func (v *TaskView) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = taskNormal
	case key.Matches(msg, v.keys.Up):
		v.picker.up()
	case key.Matches(msg, v.keys.Down):
		v.picker.down()
	case key.Matches(msg, v.keys.Enter):
		o, ok := v.picker.selected()
		mode := v.mode
		v.mode = taskNormal
		if !ok {
			return v, nil
		}
		if mode == taskStatusPicker {
			st := models.Status(o.id)
			return v, v.mutate("set status", func(ctx context.Context) (string, error) {
				_, err := v.page.SetStatus(ctx, st)
				return "", err
			})
		}
		return v, v.mutate("set story", func(ctx context.Context) (string, error) {
			_, err := v.page.SetStory(ctx, o.id)
			return "", err
		})
	}
	return v, nil
}

// layout sizes the viewport and re-renders its content
func (v *TaskView) layout() {
	contentWidth := styles.ContentWidth(v.width)
	v.viewport.Width = max(contentWidth-4, 20)
	v.viewport.Height = max(v.height-12, 5)
	v.viewport.SetContent(v.renderBody())
}

func (v *TaskView) renderer() func(string) string {
	r := v.env.Markdown
	r.Width = v.viewport.Width
	r.Resolve = func(sqid string) (models.Task, bool) {
		return v.page.Cache.TaskBySqid(sqid)
	}
	return r.Render
}

func (v *TaskView) renderBody() string {
	s := v.styles
	t, ok := v.page.Task()
	if !ok {
		return ""
	}
	render := v.renderer()
	labelStyle := s.TitleMuted

	desc := s.TitleMuted.Render("No description")
	if strings.TrimSpace(t.Description) != "" {
		desc = render(t.Description)
	}

	comments := v.page.Comments()
	var commentLines []string
	if len(comments) == 0 {
		commentLines = append(commentLines, s.TitleMuted.Render("No comments yet"))
	}
	for i, c := range comments {
		timestamp := c.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM")
		if c.Edited {
			timestamp += " (edited)"
		}
		head := s.TitleMuted.Render(timestamp)
		if i == v.commentCursor {
			head = s.HelpKey.Render("▶ ") + head
		}
		commentLines = append(commentLines, head, render(c.Text), "")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Description"),
		desc,
		"",
		labelStyle.Render(fmt.Sprintf("Comments (%d)", len(comments))),
		lipgloss.JoinVertical(lipgloss.Left, commentLines...),
	)
}

// View renders the view
func (v *TaskView) View() string {
	switch v.mode {
	case taskHelp:
		return renderHelpPopup(v.styles, v.width, v.height, v.helpItems())
	case taskRename, taskDescribe:
		return v.form.view(v.styles, v.width, v.height)
	case taskStatusPicker, taskStoryPicker:
		return v.picker.view(v.styles, v.width, v.height)
	}

	s := v.styles
	if !v.loaded {
		return s.TitleMuted.Render("Loading...")
	}
	t, ok := v.page.Task()
	if !ok {
		msg := "Task not found"
		if errs := v.page.Errors(); len(errs) > 0 {
			msg += ": " + errs[0].Error()
		}
		return s.Error.Render(msg) + "\n" + helpLine(s, v.width, bh(v.keys.Back), bh(v.keys.Quit))
	}

	badge := s.Badge.Background(styles.StatusColor(t.Status)).Render(string(t.Status))
	storyLine := "no story"
	if story, sprint := v.page.Story(); story != nil {
		storyLine = "story " + story.Title
		if sprint != nil {
			storyLine += " • " + sprint.String()
		}
	}
	meta := s.TaskRef.Render("task:"+t.Sqid) + "  " + s.TitleMuted.Render(storyLine)
	if t.BulkTask {
		meta += s.TitleMuted.Render(" • bulk")
	}

	var bottom string
	if v.mode == taskComment {
		label := "New comment"
		if v.editingComment != 0 {
			label = "Edit comment"
		}
		bottom = lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render(label),
			s.InputFocused.Render(v.commentInput.View()),
			helpLine(s, v.width, bh(v.keys.Save), kh("esc", "cancel")),
		)
	} else {
		bottom = v.renderHelp()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(t.Title)+" "+badge,
		meta,
		"",
		v.viewport.View(),
		"",
		bottom,
	)

	// Return with padding, not centered vertically, but horizontally centered if wide
	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}

func (v *TaskView) helpItems() []keyHelp {
	k := v.keys
	return []keyHelp{
		bh(k.Up), bh(k.Down),
		bh(k.Status), bh(k.Edit), bh(k.Describe), bh(k.Story),
		bh(k.Comment), kh("tab", "select comment"), kh("E", "edit comment"),
		bh(k.Copy), bh(k.Refresh), bh(k.Back), bh(k.Quit),
	}
}

func (v *TaskView) renderHelp() string {
	k := v.keys
	return helpLine(v.styles, styles.ContentWidth(v.width),
		bh(k.Status), bh(k.Edit), bh(k.Describe), bh(k.Story), bh(k.Comment), bh(k.Back), bh(k.Help))
}
