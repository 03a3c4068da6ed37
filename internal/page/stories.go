package page

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/tgienger/todosky/internal/cache"
	"github.com/tgienger/todosky/internal/models"
)

// StoriesPage is the read-only story browser
type StoriesPage struct {
	Cache *cache.Cache

	client Client
	log    *slog.Logger

	mu   sync.Mutex
	errs []error
}

func NewStoriesPage(client Client, log *slog.Logger) *StoriesPage {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &StoriesPage{Cache: cache.New(), client: client, log: log}
}

func (p *StoriesPage) Load(ctx context.Context) Report {
	rep := LoadAll(ctx, p.log,
		fetchInto("stories", p.client.GetStories, p.Cache.SetStories),
		fetchInto("sprints", p.client.GetSprints, p.Cache.SetSprints),
		fetchInto("tasks", p.client.GetTasks, p.Cache.SetTasks),
		fetchInto("tags", p.client.GetTags, p.Cache.SetTags),
		fetchInto("tag_assignments", p.client.GetTagAssignments, p.Cache.SetTagAssignments),
		fetchInto("story_relationships", p.client.GetStoryRelationships, p.Cache.SetStoryRelationships),
	)
	p.mu.Lock()
	p.errs = rep.Errors
	p.mu.Unlock()
	return rep
}

func (p *StoriesPage) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}

// SprintGroup is the stories of one sprint. Sprint is nil for stories
// whose sprint is not loaded.
type SprintGroup struct {
	Sprint  *models.Sprint
	Stories []models.Story
}

// Groups returns every story grouped by sprint, newest sprint first
func (p *StoriesPage) Groups() []SprintGroup {
	idx := p.Cache.Indices()
	sprints := p.Cache.Sprints()

	var groups []SprintGroup
	for _, s := range SortSprints(sprints) {
		stories := idx.StoriesBySprintID[s.ID]
		if len(stories) == 0 {
			continue
		}
		sp := s
		groups = append(groups, SprintGroup{Sprint: &sp, Stories: stories})
	}

	var orphans []models.Story
	for sprintID, stories := range idx.StoriesBySprintID {
		if _, ok := sprints[sprintID]; !ok {
			orphans = append(orphans, stories...)
		}
	}
	if len(orphans) > 0 {
		sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
		groups = append(groups, SprintGroup{Stories: orphans})
	}
	return groups
}

// StoryDetail is one story with everything linked to it
type StoryDetail struct {
	Story         models.Story
	Sprint        *models.Sprint
	Tags          []models.Tag
	Tasks         []models.Task
	ContinuedFrom []models.Story
	ContinuedBy   []models.Story
}

// Detail assembles the detail of story id
func (p *StoriesPage) Detail(id string) (StoryDetail, bool) {
	story, ok := p.Cache.Story(id)
	if !ok {
		return StoryDetail{}, false
	}
	idx := p.Cache.Indices()
	d := StoryDetail{Story: story, Tasks: idx.TasksByStoryID[id]}
	if sp, ok := p.Cache.Sprint(story.SprintID); ok {
		d.Sprint = &sp
	}
	for _, tagID := range idx.TagIDsByStoryID[id] {
		if tag, ok := p.Cache.Tag(tagID); ok {
			d.Tags = append(d.Tags, tag)
		}
	}

	rels := p.Cache.StoryRelationships()
	ids := make([]int, 0, len(rels))
	for relID := range rels {
		ids = append(ids, relID)
	}
	sort.Ints(ids)
	for _, relID := range ids {
		r := rels[relID]
		if r.Relation != models.RelationContinuedBy {
			continue
		}
		switch id {
		case r.StoryIDA:
			if s, ok := p.Cache.Story(r.StoryIDB); ok {
				d.ContinuedBy = append(d.ContinuedBy, s)
			}
		case r.StoryIDB:
			if s, ok := p.Cache.Story(r.StoryIDA); ok {
				d.ContinuedFrom = append(d.ContinuedFrom, s)
			}
		}
	}
	return d, true
}
