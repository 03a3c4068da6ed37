package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/cache"
	"github.com/tgienger/todosky/internal/filter"
	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/mutation"
)

// RecentSprintCount is how many sprints the sprint picker offers
const RecentSprintCount = 5

// ErrUnknownSprint is returned when selecting a sprint that is not loaded
var ErrUnknownSprint = errors.New("unknown sprint")

// Sprintboard is the controller of the board screen
type Sprintboard struct {
	Cache     *cache.Cache
	Mutations *mutation.Coordinator
	Emphasis  *filter.Emphasis

	client Client
	prefs  Prefs
	log    *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	sel     filter.Selection
	session *models.SessionStatus
	errs    []error
}

func NewSprintboard(client Client, bus broadcast.Publisher, prefs Prefs, log *slog.Logger) *Sprintboard {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := cache.New()
	return &Sprintboard{
		Cache:     c,
		Mutations: mutation.New(client, c, bus, log),
		Emphasis:  filter.NewEmphasis(),
		client:    client,
		prefs:     prefs,
		log:       log,
		now:       time.Now,
		sel:       filter.Selection{ActiveTags: filter.NewTagSet()},
	}
}

func (b *Sprintboard) fetches() []Fetch {
	return []Fetch{
		{Name: "config", Run: func(ctx context.Context) error {
			cfg, err := b.client.GetConfig(ctx)
			if err != nil {
				return err
			}
			b.Cache.SetConfig(cfg)
			return nil
		}},
		fetchInto("tasks", b.client.GetTasks, b.Cache.SetTasks),
		fetchInto("stories", b.client.GetStories, b.Cache.SetStories),
		fetchInto("sprints", b.client.GetSprints, b.Cache.SetSprints),
		fetchInto("tags", b.client.GetTags, b.Cache.SetTags),
		fetchInto("tag_assignments", b.client.GetTagAssignments, b.Cache.SetTagAssignments),
		fetchInto("story_relationships", b.client.GetStoryRelationships, b.Cache.SetStoryRelationships),
	}
}

// Load fetches everything the board shows and restores the saved filter
func (b *Sprintboard) Load(ctx context.Context) Report {
	rep := LoadAll(ctx, b.log, b.fetches()...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = rep.Errors
	b.restoreSprint(rep)
	b.restoreTags(rep)
	return rep
}

// Refresh refetches the entity lists after another process changed
// something. Config is not reloaded.
func (b *Sprintboard) Refresh(ctx context.Context, msg broadcast.Message) Report {
	b.log.Debug("refresh", "type", msg.Type, "task_id", msg.TaskID)
	rep := LoadAll(ctx, b.log, b.fetches()[1:]...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = rep.Errors
	if _, ok := b.Cache.Sprint(b.sel.SprintID); !ok {
		b.restoreSprint(rep)
	}
	// "all tags" has to pick up tags created elsewhere
	if _, saved, _ := b.prefs.SelectedTagIDs(); !saved {
		b.restoreTags(rep)
	}
	return rep
}

// CheckSession updates the remaining session time
func (b *Sprintboard) CheckSession(ctx context.Context) (*models.SessionStatus, error) {
	s, err := b.client.CheckSession(ctx)
	if err != nil || s == nil {
		return s, err
	}
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	return s, nil
}

// restoreSprint must be called with mu held. A saved sprint is only
// replaced when the sprint list loaded and does not contain it.
func (b *Sprintboard) restoreSprint(rep Report) {
	id, err := b.prefs.ViewingSprintID()
	if err != nil {
		b.log.Warn("read viewing sprint", "error", err)
	}
	if rep.FetchFailed("sprints") {
		b.sel.SprintID = id
		return
	}
	sprints := b.Cache.Sprints()
	if _, ok := sprints[id]; !ok {
		id = defaultSprint(sprints, b.now())
	}
	b.sel.SprintID = id
}

// restoreTags must be called with mu held. Saved ids are kept as they are
// unless the tag list loaded, in which case unknown ids are dropped.
func (b *Sprintboard) restoreTags(rep Report) {
	saved, ok, err := b.prefs.SelectedTagIDs()
	if err != nil {
		b.log.Warn("read selected tags", "error", err)
	}
	active := filter.NewTagSet()
	switch {
	case !ok:
		for tagID := range b.Cache.Tags() {
			active[tagID] = struct{}{}
		}
		// assignments name tags even when the tag list failed
		for _, tagIDs := range b.Cache.Indices().TagIDsByStoryID {
			for _, tagID := range tagIDs {
				active[tagID] = struct{}{}
			}
		}
	case rep.FetchFailed("tags"):
		active = filter.NewTagSet(saved...)
	default:
		tags := b.Cache.Tags()
		for _, tagID := range saved {
			if _, known := tags[tagID]; known {
				active[tagID] = struct{}{}
			}
		}
	}
	b.sel.ActiveTags = active
}

// defaultSprint picks the sprint running at now, else the one that
// started most recently.
func defaultSprint(sprints map[string]models.Sprint, now time.Time) string {
	recent := SortSprints(sprints)
	for _, s := range recent {
		start, err1 := s.Start()
		end, err2 := s.End()
		if err1 != nil || err2 != nil {
			continue
		}
		if !now.Before(start) && now.Before(end.AddDate(0, 0, 1)) {
			return s.ID
		}
	}
	if len(recent) > 0 {
		return recent[0].ID
	}
	return ""
}

// SortSprints returns sprints newest start date first. Sprints whose
// start date does not parse sort last.
func SortSprints(sprints map[string]models.Sprint) []models.Sprint {
	out := make([]models.Sprint, 0, len(sprints))
	for _, s := range sprints {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := out[i].Start()
		c, errC := out[j].Start()
		switch {
		case errA != nil && errC != nil:
			return out[i].ID < out[j].ID
		case errA != nil:
			return false
		case errC != nil:
			return true
		case !a.Equal(c):
			return a.After(c)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Selection returns a copy of the current filter
func (b *Sprintboard) Selection() filter.Selection {
	b.mu.Lock()
	defer b.mu.Unlock()
	active := filter.NewTagSet(b.sel.ActiveTags.IDs()...)
	return filter.Selection{SprintID: b.sel.SprintID, ActiveTags: active}
}

// SelectSprint switches the board to sprint id and remembers it
func (b *Sprintboard) SelectSprint(id string) error {
	if _, ok := b.Cache.Sprint(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSprint, id)
	}
	b.mu.Lock()
	b.sel.SprintID = id
	b.mu.Unlock()
	return b.prefs.SetViewingSprintID(id)
}

// CycleSprint moves delta steps through the sprints ordered newest first
func (b *Sprintboard) CycleSprint(delta int) error {
	sprints := SortSprints(b.Cache.Sprints())
	if len(sprints) == 0 {
		return nil
	}
	current := b.Selection().SprintID
	cur := 0
	for i, s := range sprints {
		if s.ID == current {
			cur = i
			break
		}
	}
	next := ((cur+delta)%len(sprints) + len(sprints)) % len(sprints)
	return b.SelectSprint(sprints[next].ID)
}

// ToggleTag flips one tag in the active set
func (b *Sprintboard) ToggleTag(id string) error {
	b.mu.Lock()
	if b.sel.ActiveTags.Has(id) {
		delete(b.sel.ActiveTags, id)
	} else {
		b.sel.ActiveTags[id] = struct{}{}
	}
	ids := b.sel.ActiveTags.IDs()
	b.mu.Unlock()
	return b.prefs.SetSelectedTagIDs(ids)
}

// SelectAllTags activates every loaded tag
func (b *Sprintboard) SelectAllTags() error {
	active := filter.NewTagSet()
	for id := range b.Cache.Tags() {
		active[id] = struct{}{}
	}
	b.mu.Lock()
	b.sel.ActiveTags = active
	b.mu.Unlock()
	return b.prefs.SetSelectedTagIDs(active.IDs())
}

// SelectNoTags clears the active tag set
func (b *Sprintboard) SelectNoTags() error {
	b.mu.Lock()
	b.sel.ActiveTags = filter.NewTagSet()
	b.mu.Unlock()
	return b.prefs.SetSelectedTagIDs(nil)
}

// StoryCard is one visible story with its presentation state
type StoryCard struct {
	Story   models.Story
	Tags    []models.Tag
	Tasks   []models.Task
	Opacity float64
	Solo    bool
	Muted   bool
}

// TagChip is one tag in the tag filter bar
type TagChip struct {
	Tag    models.Tag
	Active bool
}

// BoardView is everything the board screen draws
type BoardView struct {
	Sprint        *models.Sprint
	Buckets       []filter.Bucket
	Stories       []StoryCard
	Tags          []TagChip
	RecentSprints []models.Sprint
	Session       *models.SessionStatus
	Errors        []error
}

// View derives the board from the cache and the current filter
func (b *Sprintboard) View() BoardView {
	sel := b.Selection()
	b.mu.Lock()
	session, errs := b.session, b.errs
	b.mu.Unlock()

	stories := b.Cache.Stories()
	tags := b.Cache.Tags()
	idx := b.Cache.Indices()

	tasks := make([]models.Task, 0)
	for _, t := range b.Cache.Tasks() {
		tasks = append(tasks, t)
	}
	filter.SortTasks(tasks)

	visible := filter.Tasks(tasks, stories, sel, idx.TagIDsByStoryID)

	v := BoardView{
		Buckets: filter.BucketTasks(visible),
		Session: session,
		Errors:  errs,
	}
	if s, ok := b.Cache.Sprint(sel.SprintID); ok {
		v.Sprint = &s
	}

	tasksByStory := map[string][]models.Task{}
	for _, t := range visible {
		if t.StoryID != nil {
			tasksByStory[*t.StoryID] = append(tasksByStory[*t.StoryID], t)
		}
	}
	for _, s := range filter.Stories(idx.StoriesBySprintID[sel.SprintID], sel.SprintID) {
		card := StoryCard{
			Story:   s,
			Tasks:   tasksByStory[s.ID],
			Opacity: b.Emphasis.Opacity(s.ID),
			Solo:    b.Emphasis.IsSolo(s.ID),
			Muted:   b.Emphasis.IsMuted(s.ID),
		}
		for _, tagID := range idx.TagIDsByStoryID[s.ID] {
			if tag, ok := tags[tagID]; ok {
				card.Tags = append(card.Tags, tag)
			}
		}
		v.Stories = append(v.Stories, card)
	}

	for _, tag := range sortedTags(tags) {
		v.Tags = append(v.Tags, TagChip{Tag: tag, Active: sel.ActiveTags.Has(tag.ID)})
	}

	recent := SortSprints(b.Cache.Sprints())
	if len(recent) > RecentSprintCount {
		recent = recent[:RecentSprintCount]
	}
	v.RecentSprints = recent
	return v
}

func sortedTags(tags map[string]models.Tag) []models.Tag {
	out := make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}
