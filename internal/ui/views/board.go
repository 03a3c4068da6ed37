package views

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/db"
	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/mutation"
	"github.com/tgienger/todosky/internal/page"
	"github.com/tgienger/todosky/internal/session"
	"github.com/tgienger/todosky/internal/ui/keys"
	"github.com/tgienger/todosky/internal/ui/styles"
)

// columnMinWidth is the narrowest a status column is drawn
const columnMinWidth = 26

type boardPane int

const (
	paneTasks boardPane = iota
	paneStories
)

type boardMode int

const (
	boardNormal boardMode = iota
	boardHelp
	boardTagFilter
	boardSprintPicker
	boardStoryTags
	boardContinue
	boardForm
)

type formKind int

const (
	formNewTask formKind = iota
	formNewStory
	formNewSprint
	formNewTag
	formBulk
	formEditStory
)

// BoardView is the sprintboard screen: one column per status bucket, a
// story panel with solo/mute, and the sprint and tag filters.
type BoardView struct {
	env    *Env
	board  *page.Sprintboard
	view   page.BoardView
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int
	loaded bool

	pane      boardPane
	col       int
	rows      []int
	colOffset int
	storyRow  int

	mode      boardMode
	picker    *picker
	form      *form
	formKind  formKind
	formStory string

	copyMode  db.CopyMode
	countdown session.Countdown
	now       func() time.Time
}

func NewBoardView(env *Env) *BoardView {
	return &BoardView{
		env:      env,
		board:    page.NewSprintboard(env.Client, env.Bus, env.Prefs, env.logger()),
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		copyMode: env.Prefs.CopyMode(),
		now:      time.Now,
	}
}

type boardLoadedMsg struct {
	report page.Report
}

type boardMutatedMsg struct {
	what string
	note string
	err  error
}

type sessionCheckedMsg struct {
	status *models.SessionStatus
	err    error
}

type sessionTickMsg time.Time

func (v *BoardView) Init() tea.Cmd {
	return tea.Batch(v.load, v.checkSession, v.tick())
}

func (v *BoardView) load() tea.Msg {
	return boardLoadedMsg{report: v.board.Load(v.env.Ctx)}
}

// Reload fetches everything again and rechecks the session. The session
// ticker started by Init keeps running.
func (v *BoardView) Reload() tea.Cmd {
	return tea.Batch(v.load, v.checkSession)
}

// Refresh reloads the board after another process changed something
func (v *BoardView) Refresh(msg broadcast.Message) tea.Cmd {
	return func() tea.Msg {
		return boardLoadedMsg{report: v.board.Refresh(v.env.Ctx, msg)}
	}
}

func (v *BoardView) checkSession() tea.Msg {
	s, err := v.board.CheckSession(v.env.Ctx)
	return sessionCheckedMsg{status: s, err: err}
}

func (v *BoardView) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return sessionTickMsg(t) })
}

// mutate runs fn off the UI goroutine and reports back with what
func (v *BoardView) mutate(what string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		note, err := fn(v.env.Ctx)
		return boardMutatedMsg{what: what, note: note, err: err}
	}
}

func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		if v.form != nil {
			v.form.setWidth(msg.Width)
		}
		return v, nil

	case boardLoadedMsg:
		v.loaded = true
		v.snapshot()
		if msg.report.Failed() {
			return v, failure("load", msg.report.Err())
		}
		return v, nil

	case boardMutatedMsg:
		v.snapshot()
		if msg.err != nil {
			return v, failure(msg.what, msg.err)
		}
		if msg.note != "" {
			return v, status("%s", msg.note)
		}
		return v, nil

	case sessionCheckedMsg:
		if unauthorized(msg.err) {
			return v, func() tea.Msg { return SessionExpired{} }
		}
		if msg.err == nil && msg.status != nil {
			v.countdown.Observe(*msg.status, v.now())
		}
		return v, nil

	case sessionTickMsg:
		return v, v.tick()

	case tea.KeyMsg:
		if v.mode == boardHelp {
			v.mode = boardNormal
			return v, nil
		}
		switch v.mode {
		case boardForm:
			return v.updateForm(msg)
		case boardTagFilter:
			return v.updateTagFilter(msg)
		case boardSprintPicker:
			return v.updateSprintPicker(msg)
		case boardStoryTags:
			return v.updateStoryTags(msg)
		case boardContinue:
			return v.updateContinue(msg)
		}
		if v.pane == paneStories {
			return v.updateStories(msg)
		}
		return v.updateTasks(msg)
	}
	return v, nil
}

// snapshot recomputes the derived board and keeps cursors in range
func (v *BoardView) snapshot() {
	v.view = v.board.View()
	if len(v.rows) != len(v.view.Buckets) {
		rows := make([]int, len(v.view.Buckets))
		copy(rows, v.rows)
		v.rows = rows
	}
	v.col = clamp(v.col, 0, max(len(v.view.Buckets)-1, 0))
	for i, b := range v.view.Buckets {
		v.rows[i] = clamp(v.rows[i], 0, max(len(b.Tasks)-1, 0))
	}
	v.storyRow = clamp(v.storyRow, 0, max(len(v.view.Stories)-1, 0))

	switch v.mode {
	case boardTagFilter:
		v.picker.setOptions(v.tagFilterOptions())
	case boardStoryTags:
		if card, ok := v.selectedStory(); ok {
			v.picker.setOptions(v.storyTagOptions(card.Story.ID))
		}
	}
}

func (v *BoardView) selectedTask() (models.Task, bool) {
	if v.col >= len(v.view.Buckets) {
		return models.Task{}, false
	}
	tasks := v.view.Buckets[v.col].Tasks
	if len(tasks) == 0 {
		return models.Task{}, false
	}
	return tasks[v.rows[v.col]], true
}

func (v *BoardView) selectedStory() (page.StoryCard, bool) {
	if len(v.view.Stories) == 0 {
		return page.StoryCard{}, false
	}
	return v.view.Stories[v.storyRow], true
}

// contextStory is the story new tasks attach to: the highlighted story in
// the story panel, else the story of the highlighted task.
func (v *BoardView) contextStory() (models.Story, bool) {
	if v.pane == paneStories {
		if card, ok := v.selectedStory(); ok {
			return card.Story, true
		}
		return models.Story{}, false
	}
	if t, ok := v.selectedTask(); ok && t.StoryID != nil {
		return v.board.Cache.Story(*t.StoryID)
	}
	return models.Story{}, false
}

func (v *BoardView) updateCommon(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, v.keys.Help):
		v.mode = boardHelp
		return nil, true
	case key.Matches(msg, v.keys.Refresh):
		return v.Reload(), true
	case key.Matches(msg, v.keys.Stories):
		if v.pane == paneStories {
			v.pane = paneTasks
		} else {
			v.pane = paneStories
		}
		return nil, true
	case key.Matches(msg, v.keys.OpenStories):
		id := ""
		if v.pane == paneStories {
			if card, ok := v.selectedStory(); ok {
				id = card.Story.ID
			}
		}
		return func() tea.Msg { return OpenStories{StoryID: id} }, true
	case key.Matches(msg, v.keys.PrevSprint):
		return v.cycleSprint(1), true
	case key.Matches(msg, v.keys.NextSprint):
		return v.cycleSprint(-1), true
	case key.Matches(msg, v.keys.Sprints):
		v.openSprintPicker()
		return nil, true
	case key.Matches(msg, v.keys.Tags):
		v.mode = boardTagFilter
		v.picker = &picker{
			title: "Filter by tag",
			hint:  "space: toggle • a: all • x: none • esc: done",
			multi: true,
		}
		v.picker.setOptions(v.tagFilterOptions())
		return nil, true
	case key.Matches(msg, v.keys.Solo), key.Matches(msg, v.keys.Mute):
		if card, ok := v.currentStoryCard(); ok {
			if key.Matches(msg, v.keys.Solo) {
				v.board.Emphasis.ToggleSolo(card.Story.ID)
			} else {
				v.board.Emphasis.ToggleMute(card.Story.ID)
			}
			v.snapshot()
		}
		return nil, true
	case key.Matches(msg, v.keys.ClearFocus):
		v.board.Emphasis.Clear()
		v.snapshot()
		return nil, true
	case key.Matches(msg, v.keys.CopyMode):
		v.copyMode = v.copyMode.Next()
		if err := v.env.Prefs.SetCopyMode(v.copyMode); err != nil {
			return failure("save copy mode", err), true
		}
		return status("copy mode: %s", v.copyMode), true
	case key.Matches(msg, v.keys.NewTask):
		v.openTaskForm(formNewTask)
		return textinput.Blink, true
	case key.Matches(msg, v.keys.Bulk):
		if _, ok := v.contextStory(); !ok {
			return status("select a story or one of its tasks first"), true
		}
		v.openTaskForm(formBulk)
		return textinput.Blink, true
	case key.Matches(msg, v.keys.NewStory):
		if v.view.Sprint == nil {
			return status("no sprint selected"), true
		}
		v.openForm(formNewStory, newForm("New Story",
			textField("Title", "Story title", ""),
			areaField("Description", "Description (markdown)", ""),
		), "Sprint: "+v.view.Sprint.String())
		return textinput.Blink, true
	case key.Matches(msg, v.keys.NewSprint):
		v.openForm(formNewSprint, v.sprintForm(), "")
		return textinput.Blink, true
	case key.Matches(msg, v.keys.NewTag):
		v.openForm(formNewTag, newForm("New Tag",
			textField("Title", "Tag title", ""),
			textField("Description", "Description (optional)", ""),
		), "")
		return textinput.Blink, true
	}
	return nil, false
}

// currentStoryCard is the story the solo/mute keys act on
func (v *BoardView) currentStoryCard() (page.StoryCard, bool) {
	if v.pane == paneStories {
		return v.selectedStory()
	}
	t, ok := v.selectedTask()
	if !ok || t.StoryID == nil {
		return page.StoryCard{}, false
	}
	for _, c := range v.view.Stories {
		if c.Story.ID == *t.StoryID {
			return c, true
		}
	}
	return page.StoryCard{}, false
}

func (v *BoardView) updateTasks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := v.updateCommon(msg); ok {
		return v, cmd
	}

	switch {
	case key.Matches(msg, v.keys.Left):
		if v.col > 0 {
			v.col--
		}
	case key.Matches(msg, v.keys.Right):
		if v.col < len(v.view.Buckets)-1 {
			v.col++
		}
	case key.Matches(msg, v.keys.Up):
		if v.col < len(v.rows) && v.rows[v.col] > 0 {
			v.rows[v.col]--
		}
	case key.Matches(msg, v.keys.Down):
		if v.col < len(v.view.Buckets) && v.rows[v.col] < len(v.view.Buckets[v.col].Tasks)-1 {
			v.rows[v.col]++
		}
	case key.Matches(msg, v.keys.MoveLeft):
		return v, v.moveTask(-1)
	case key.Matches(msg, v.keys.MoveRight):
		return v, v.moveTask(1)
	case key.Matches(msg, v.keys.Enter):
		if t, ok := v.selectedTask(); ok {
			return v, func() tea.Msg { return OpenTask{Ref: t.ID} }
		}
	case key.Matches(msg, v.keys.Copy):
		if t, ok := v.selectedTask(); ok {
			return v, v.copyRef(t)
		}
	}
	return v, nil
}

// moveTask changes the highlighted task's status to that of the column
// delta steps away, the keyboard version of dragging a card.
func (v *BoardView) moveTask(delta int) tea.Cmd {
	t, ok := v.selectedTask()
	target := v.col + delta
	if !ok || target < 0 || target >= len(v.view.Buckets) {
		return nil
	}
	to := v.view.Buckets[target].Status
	v.col = target
	return v.mutate("move task", func(ctx context.Context) (string, error) {
		_, err := v.board.Mutations.MoveTask(ctx, t.ID, to)
		return "", err
	})
}

func (v *BoardView) copyRef(t models.Task) tea.Cmd {
	ref := v.copyMode.Format(t.Sqid)
	if v.env.Copy == nil {
		return status("%s", ref)
	}
	if err := v.env.Copy(ref); err != nil {
		return failure("copy", err)
	}
	return status("copied %s", ref)
}

func (v *BoardView) cycleSprint(delta int) tea.Cmd {
	if err := v.board.CycleSprint(delta); err != nil {
		return failure("select sprint", err)
	}
	v.resetCursors()
	v.snapshot()
	return nil
}

func (v *BoardView) resetCursors() {
	for i := range v.rows {
		v.rows[i] = 0
	}
	v.storyRow = 0
}

func (v *BoardView) updateStories(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := v.updateCommon(msg); ok {
		return v, cmd
	}

	card, ok := v.selectedStory()
	switch {
	case key.Matches(msg, v.keys.Back):
		v.pane = paneTasks
	case key.Matches(msg, v.keys.Up):
		if v.storyRow > 0 {
			v.storyRow--
		}
	case key.Matches(msg, v.keys.Down):
		if v.storyRow < len(v.view.Stories)-1 {
			v.storyRow++
		}
	case !ok:
		return v, nil
	case key.Matches(msg, v.keys.Enter):
		return v, func() tea.Msg { return OpenStories{StoryID: card.Story.ID} }
	case key.Matches(msg, v.keys.MoveLeft), key.Matches(msg, v.keys.MoveRight):
		delta := 1
		if key.Matches(msg, v.keys.MoveLeft) {
			delta = -1
		}
		return v, v.shiftStoryStatus(card.Story, delta)
	case key.Matches(msg, v.keys.Status):
		v.mode = boardStoryTags
		v.picker = &picker{
			title: "Tags of " + card.Story.Title,
			hint:  "space: toggle • esc: done",
			multi: true,
		}
		v.picker.setOptions(v.storyTagOptions(card.Story.ID))
	case key.Matches(msg, v.keys.Continue):
		v.openContinuePicker(card.Story)
	case key.Matches(msg, v.keys.Edit):
		v.openForm(formEditStory, newForm("Edit Story",
			textField("Title", "Story title", card.Story.Title),
			areaField("Description", "Description (markdown)", card.Story.Description),
		), "")
		v.formStory = card.Story.ID
		return v, textinput.Blink
	}
	return v, nil
}

// shiftStoryStatus steps a story through the status enumeration
func (v *BoardView) shiftStoryStatus(story models.Story, delta int) tea.Cmd {
	all := models.Statuses()
	cur := -1
	for i, s := range all {
		if s == story.Status {
			cur = i
		}
	}
	next := cur + delta
	if cur < 0 || next < 0 || next >= len(all) {
		return nil
	}
	to := all[next]
	return v.mutate("update story", func(ctx context.Context) (string, error) {
		_, err := v.board.Mutations.UpdateStory(ctx, story.ID, mutation.StoryChange{Status: &to})
		return "", err
	})
}

func (v *BoardView) tagFilterOptions() []option {
	opts := make([]option, 0, len(v.view.Tags))
	for _, chip := range v.view.Tags {
		opts = append(opts, option{
			id:      chip.Tag.ID,
			label:   chip.Tag.Title,
			color:   styles.TagColor(chip.Tag.Title),
			checked: chip.Active,
		})
	}
	return opts
}

func (v *BoardView) updateTagFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Tags):
		v.mode = boardNormal
		return v, nil
	case key.Matches(msg, v.keys.Up):
		v.picker.up()
		return v, nil
	case key.Matches(msg, v.keys.Down):
		v.picker.down()
		return v, nil
	case key.Matches(msg, v.keys.Toggle), key.Matches(msg, v.keys.Enter):
		if o, ok := v.picker.selected(); ok {
			err = v.board.ToggleTag(o.id)
		}
	case key.Matches(msg, v.keys.AllTags):
		err = v.board.SelectAllTags()
	case key.Matches(msg, v.keys.NoTags):
		err = v.board.SelectNoTags()
	default:
		return v, nil
	}
	v.snapshot()
	if err != nil {
		return v, failure("save tag filter", err)
	}
	return v, nil
}

func (v *BoardView) openSprintPicker() {
	v.mode = boardSprintPicker
	v.picker = &picker{title: "Recent sprints", hint: "↵: select • esc: cancel"}
	opts := make([]option, 0, len(v.view.RecentSprints))
	for _, s := range v.view.RecentSprints {
		opts = append(opts, option{id: s.ID, label: s.String()})
	}
	v.picker.setOptions(opts)
	if v.view.Sprint != nil {
		v.picker.focus(v.view.Sprint.ID)
	}
}

func (v *BoardView) updateSprintPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = boardNormal
	case key.Matches(msg, v.keys.Up):
		v.picker.up()
	case key.Matches(msg, v.keys.Down):
		v.picker.down()
	case key.Matches(msg, v.keys.Enter):
		v.mode = boardNormal
		if o, ok := v.picker.selected(); ok {
			if err := v.board.SelectSprint(o.id); err != nil {
				return v, failure("select sprint", err)
			}
			v.resetCursors()
			v.snapshot()
		}
	}
	return v, nil
}

func (v *BoardView) storyTagOptions(storyID string) []option {
	assigned := map[string]bool{}
	for _, card := range v.view.Stories {
		if card.Story.ID == storyID {
			for _, t := range card.Tags {
				assigned[t.ID] = true
			}
		}
	}
	opts := make([]option, 0, len(v.view.Tags))
	for _, chip := range v.view.Tags {
		opts = append(opts, option{
			id:      chip.Tag.ID,
			label:   chip.Tag.Title,
			color:   styles.TagColor(chip.Tag.Title),
			checked: assigned[chip.Tag.ID],
		})
	}
	return opts
}

func (v *BoardView) updateStoryTags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = boardNormal
	case key.Matches(msg, v.keys.Up):
		v.picker.up()
	case key.Matches(msg, v.keys.Down):
		v.picker.down()
	case key.Matches(msg, v.keys.Toggle), key.Matches(msg, v.keys.Enter):
		card, ok := v.selectedStory()
		o, ok2 := v.picker.selected()
		if !ok || !ok2 {
			return v, nil
		}
		assign := !o.checked
		return v, v.mutate("assign tag", func(ctx context.Context) (string, error) {
			_, err := v.board.Mutations.SetTagAssigned(ctx, o.id, card.Story.ID, assign)
			return "", err
		})
	}
	return v, nil
}

func (v *BoardView) openContinuePicker(from models.Story) {
	v.mode = boardContinue
	v.picker = &picker{
		title: "Continue " + from.Title + " into",
		hint:  "↵: link • esc: cancel",
	}
	sprints := v.board.Cache.Sprints()
	stories := make([]models.Story, 0)
	for _, s := range v.board.Cache.Stories() {
		if s.ID != from.ID {
			stories = append(stories, s)
		}
	}
	order := map[string]int{}
	for i, s := range page.SortSprints(sprints) {
		order[s.ID] = i
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
	opts := make([]option, 0, len(stories))
	for _, s := range stories {
		label := s.Title
		if sp, ok := sprints[s.SprintID]; ok {
			label += "  " + sp.String()
		}
		opts = append(opts, option{id: s.ID, label: label})
	}
	v.picker.setOptions(opts)
	v.formStory = from.ID
}

func (v *BoardView) updateContinue(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = boardNormal
	case key.Matches(msg, v.keys.Up):
		v.picker.up()
	case key.Matches(msg, v.keys.Down):
		v.picker.down()
	case key.Matches(msg, v.keys.Enter):
		v.mode = boardNormal
		o, ok := v.picker.selected()
		if !ok {
			return v, nil
		}
		from := v.formStory
		return v, v.mutate("continue story", func(ctx context.Context) (string, error) {
			res, err := v.board.Mutations.ContinueStory(ctx, from, o.id)
			if err != nil || res.Skipped {
				return "already linked", err
			}
			return "linked", nil
		})
	}
	return v, nil
}

func (v *BoardView) openForm(kind formKind, f *form, note string) {
	v.mode = boardForm
	v.formKind = kind
	v.form = f
	v.form.note = note
	v.form.setWidth(v.width)
}

func (v *BoardView) openTaskForm(kind formKind) {
	title := "New Task"
	if kind == formBulk {
		title = "Bulk Tasks (one per sprint day)"
	}
	f := newForm(title,
		textField("Title", "Task title", ""),
		areaField("Description", "Description (markdown)", ""),
	)
	note := "Story: none"
	v.formStory = ""
	if s, ok := v.contextStory(); ok {
		note = "Story: " + s.Title
		v.formStory = s.ID
	}
	v.openForm(kind, f, note)
}

func (v *BoardView) sprintForm() *form {
	start := v.now()
	days := 13
	if cfg := v.board.Cache.Config(); cfg != nil && cfg.SprintDurationSeconds > 0 {
		days = max(cfg.SprintDurationSeconds/86400-1, 0)
	}
	return newForm("New Sprint",
		textField("Title", "Sprint title", ""),
		textField("Start (YYYY-MM-DD)", "2006-01-02", start.Format(time.DateOnly)),
		textField("End (YYYY-MM-DD)", "2006-01-02", start.AddDate(0, 0, days).Format(time.DateOnly)),
	)
}

func (v *BoardView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	submitted, cancelled, cmd := v.form.update(msg, v.keys)
	switch {
	case cancelled:
		v.mode = boardNormal
		v.form = nil
		return v, nil
	case !submitted:
		return v, cmd
	}

	save, err := v.submitForm()
	if err != nil {
		v.form.err = err.Error()
		return v, nil
	}
	v.mode = boardNormal
	v.form = nil
	return v, save
}

// submitForm turns the open form into a mutation. Input errors keep the
// form open.
func (v *BoardView) submitForm() (tea.Cmd, error) {
	f := v.form
	co := v.board.Mutations
	var storyID *string
	if v.formStory != "" {
		id := v.formStory
		storyID = &id
	}

	switch v.formKind {
	case formNewTask:
		nt := mutation.NewTask{Title: f.value(0), Description: f.value(1), StoryID: storyID}
		return v.mutate("create task", func(ctx context.Context) (string, error) {
			_, err := co.CreateTask(ctx, nt)
			return "task created", err
		}), nil

	case formBulk:
		req := mutation.BulkTaskRequest{Title: f.value(0), Description: f.value(1), StoryID: v.formStory}
		return v.mutate("bulk create", func(ctx context.Context) (string, error) {
			res, err := co.BulkCreateTasks(ctx, req)
			if err != nil && len(res.Titles) > 0 {
				return "", fmt.Errorf("created %d tasks before failing: %w", len(res.Titles), err)
			}
			return fmt.Sprintf("created %d tasks", len(res.Titles)), err
		}), nil

	case formNewStory:
		if v.view.Sprint == nil {
			return nil, errors.New("no sprint selected")
		}
		ns := mutation.NewStory{Title: f.value(0), Description: f.value(1), SprintID: v.view.Sprint.ID}
		return v.mutate("create story", func(ctx context.Context) (string, error) {
			_, err := co.CreateStory(ctx, ns)
			return "story created", err
		}), nil

	case formEditStory:
		title, desc, id := f.value(0), f.value(1), v.formStory
		return v.mutate("update story", func(ctx context.Context) (string, error) {
			res, err := co.UpdateStory(ctx, id, mutation.StoryChange{Title: &title, Description: &desc})
			if res.Skipped {
				return "nothing changed", err
			}
			return "story saved", err
		}), nil

	case formNewSprint:
		start, err := time.Parse(time.DateOnly, f.value(1))
		if err != nil {
			return nil, fmt.Errorf("start date: %w", err)
		}
		end, err := time.Parse(time.DateOnly, f.value(2))
		if err != nil {
			return nil, fmt.Errorf("end date: %w", err)
		}
		ns := mutation.NewSprint{Title: f.value(0), Start: start, End: end}
		return v.mutate("create sprint", func(ctx context.Context) (string, error) {
			return "sprint created", co.CreateSprint(ctx, ns)
		}), nil

	case formNewTag:
		title, desc := f.value(0), f.value(1)
		return v.mutate("create tag", func(ctx context.Context) (string, error) {
			return "tag created", co.CreateTag(ctx, title, desc)
		}), nil
	}
	return nil, nil
}

func (v *BoardView) helpItems() []keyHelp {
	k := v.keys
	return []keyHelp{
		bh(k.Left), bh(k.Right), bh(k.Up), bh(k.Down),
		kh("↵", "open task / story"),
		bh(k.MoveLeft), bh(k.MoveRight),
		bh(k.PrevSprint), bh(k.NextSprint), bh(k.Sprints),
		bh(k.Tags), bh(k.Stories), bh(k.OpenStories),
		bh(k.Solo), bh(k.Mute), bh(k.ClearFocus),
		bh(k.Copy), bh(k.CopyMode),
		bh(k.NewTask), bh(k.Bulk), bh(k.NewStory), bh(k.NewSprint), bh(k.NewTag),
		kh("t", "story tags (story panel)"),
		kh("c", "continue story (story panel)"),
		kh("e", "edit story (story panel)"),
		bh(k.Refresh), bh(k.Quit),
	}
}

// View renders the view
func (v *BoardView) View() string {
	switch v.mode {
	case boardHelp:
		return renderHelpPopup(v.styles, v.width, v.height, v.helpItems())
	case boardForm:
		return v.form.view(v.styles, v.width, v.height)
	case boardTagFilter, boardSprintPicker, boardStoryTags, boardContinue:
		return v.picker.view(v.styles, v.width, v.height)
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n")
	if v.pane == paneStories {
		b.WriteString(v.renderStories())
	} else {
		b.WriteString(v.renderColumns())
	}
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *BoardView) renderHeader() string {
	s := v.styles

	title := "No sprint"
	if v.view.Sprint != nil {
		title = v.view.Sprint.String()
	}
	right := "session " + v.countdown.Format(v.now()) + " • copy " + string(v.copyMode)
	if len(v.view.Errors) > 0 {
		right = s.Error.Render(fmt.Sprintf("%d loads failed", len(v.view.Errors))) + " • " + right
	}
	width := styles.BoardWidth(v.width)
	gap := max(width-lipgloss.Width(title)-lipgloss.Width(right)-2, 1)
	top := s.Title.Render(title) + strings.Repeat(" ", gap) + s.TitleMuted.Render(right)

	var chips []string
	for _, chip := range v.view.Tags {
		if chip.Active {
			chips = append(chips, s.TagActive.Foreground(styles.TagColor(chip.Tag.Title)).Render(chip.Tag.Title))
		} else {
			chips = append(chips, s.Tag.Render(chip.Tag.Title))
		}
	}
	tags := s.TitleMuted.Render("no tags")
	if len(chips) > 0 {
		tags = lipgloss.NewStyle().Width(width).Render(strings.Join(chips, ""))
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, tags)
}

// visibleColumns is how many status columns fit side by side
func (v *BoardView) visibleColumns() int {
	return clamp(styles.BoardWidth(v.width)/columnMinWidth, 1, max(len(v.view.Buckets), 1))
}

func (v *BoardView) renderColumns() string {
	n := v.visibleColumns()
	if v.col < v.colOffset {
		v.colOffset = v.col
	} else if v.col >= v.colOffset+n {
		v.colOffset = v.col - n + 1
	}
	v.colOffset = clamp(v.colOffset, 0, max(len(v.view.Buckets)-n, 0))

	colWidth := styles.BoardWidth(v.width)/n - 4
	bodyHeight := max(v.height-9, 3)

	var cols []string
	for i := v.colOffset; i < min(v.colOffset+n, len(v.view.Buckets)); i++ {
		cols = append(cols, v.renderColumn(i, colWidth, bodyHeight))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (v *BoardView) renderColumn(i, width, height int) string {
	s := v.styles
	bucket := v.view.Buckets[i]
	focused := i == v.col

	head := s.ColumnTitle.Foreground(styles.StatusColor(bucket.Status)).
		Render(fmt.Sprintf("%s (%d)", bucket.Status, len(bucket.Tasks)))

	// Each card is two lines
	visible := max(height/2-1, 1)
	row := v.rows[i]
	start := 0
	if row >= visible {
		start = row - visible + 1
	}
	end := min(start+visible, len(bucket.Tasks))

	lines := []string{head}
	if len(bucket.Tasks) == 0 {
		lines = append(lines, s.TitleMuted.Render("empty"))
	}
	for j := start; j < end; j++ {
		lines = append(lines, v.renderCard(bucket.Tasks[j], width, focused && j == row))
	}

	st := s.Column
	if focused {
		st = s.ColumnFocused
	}
	return st.Width(width).Height(height).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (v *BoardView) renderCard(t models.Task, width int, selected bool) string {
	s := v.styles
	opacity := 1.0
	storyLine := "no story"
	if t.StoryID != nil {
		opacity = v.board.Emphasis.Opacity(*t.StoryID)
		if story, ok := v.board.Cache.Story(*t.StoryID); ok {
			storyLine = story.Title
		}
	}

	titleStyle := s.Card.Foreground(styles.Fade(styles.Current.Foreground, opacity))
	if selected {
		titleStyle = s.CardSelected
	}
	meta := s.TaskRef.Foreground(styles.Fade(styles.Current.Accent, opacity)).Render(t.Sqid) + " " +
		s.TitleMuted.Foreground(styles.Fade(styles.Current.ForegroundDim, opacity)).Render(truncate(storyLine, width-len(t.Sqid)-1))
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Width(width).Render(truncate(t.Title, width)),
		meta,
	)
}

func (v *BoardView) renderStories() string {
	s := v.styles
	width := styles.BoardWidth(v.width) - 4

	if len(v.view.Stories) == 0 {
		return s.TitleMuted.Render("No stories in this sprint. Press 'N' to create one.")
	}

	// Each story card is 2 lines (title + tags) + 1 margin = 3 lines
	visible := max((v.height-8)/3, 1)
	start := 0
	if v.storyRow >= visible {
		start = v.storyRow - visible + 1
	}
	end := min(start+visible, len(v.view.Stories))

	var items []string
	for i := start; i < end; i++ {
		card := v.view.Stories[i]
		fg := styles.Fade(styles.Current.Foreground, card.Opacity)

		flags := ""
		if card.Solo {
			flags += " [solo]"
		}
		if card.Muted {
			flags += " [mute]"
		}
		badge := s.Badge.Background(styles.Fade(styles.StatusColor(card.Story.Status), card.Opacity)).
			Render(string(card.Story.Status))
		title := lipgloss.NewStyle().Foreground(fg).Render(
			truncate(fmt.Sprintf("%s (%d tasks)%s", card.Story.Title, len(card.Tasks), flags), width-lipgloss.Width(badge)-1))

		var tagStrs []string
		for _, tag := range card.Tags {
			tagStrs = append(tagStrs, lipgloss.NewStyle().
				Foreground(styles.Fade(styles.TagColor(tag.Title), card.Opacity)).Render(tag.Title))
		}
		tagsLine := s.TitleMuted.Render("no tags")
		if len(tagStrs) > 0 {
			tagsLine = strings.Join(tagStrs, " ")
		}

		itemStyle := s.ListItem
		if i == v.storyRow {
			itemStyle = s.ListSelected
		}
		items = append(items, lipgloss.JoinVertical(lipgloss.Left,
			itemStyle.Width(width).Render(badge+" "+title),
			s.ListItem.Width(width).Render(tagsLine),
		)+"\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *BoardView) renderHelp() string {
	k := v.keys
	width := styles.BoardWidth(v.width)
	if v.pane == paneStories {
		return helpLine(v.styles, width,
			kh("↵", "browse"), bh(k.Solo), bh(k.Mute),
			kh("</>", "status"), kh("t", "tags"), kh("c", "continue"), kh("e", "edit"),
			kh("s", "tasks"), bh(k.Help))
	}
	return helpLine(v.styles, width,
		kh("↵", "open"), kh("</>", "move"), kh("[/]", "sprint"),
		bh(k.Tags), bh(k.Stories), bh(k.Copy), bh(k.NewTask), bh(k.Help), bh(k.Quit))
}
