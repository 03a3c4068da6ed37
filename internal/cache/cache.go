// Package cache holds the entities fetched for one screen, keyed by id, and
// the secondary indices derived from them.
package cache

import (
	"sync"

	"github.com/tgienger/todosky/internal/models"
)

// Build indexes records by key. A nil or empty slice gives an empty map.
// When two records share a key the later one wins.
func Build[K comparable, V any](records []V, key func(V) K) map[K]V {
	out := make(map[K]V, len(records))
	for _, r := range records {
		out[key(r)] = r
	}
	return out
}

func taskID(t models.Task) string { return t.ID }
func storyID(s models.Story) string { return s.ID }
func sprintID(s models.Sprint) string { return s.ID }
func tagID(t models.Tag) string { return t.ID }
func assignmentID(a models.TagAssignment) int { return a.ID }
func relationshipID(r models.StoryRelationship) int { return r.ID }

// Cache is the entity store for a single screen. Page loads populate it
// from several goroutines so every accessor takes the lock.
type Cache struct {
	mu            sync.RWMutex
	config        *models.Config
	tasks         map[string]models.Task
	stories       map[string]models.Story
	sprints       map[string]models.Sprint
	tags          map[string]models.Tag
	assignments   map[int]models.TagAssignment
	relationships map[int]models.StoryRelationship
}

// New returns an empty cache
func New() *Cache {
	return &Cache{
		tasks:         map[string]models.Task{},
		stories:       map[string]models.Story{},
		sprints:       map[string]models.Sprint{},
		tags:          map[string]models.Tag{},
		assignments:   map[int]models.TagAssignment{},
		relationships: map[int]models.StoryRelationship{},
	}
}

func (c *Cache) SetConfig(cfg *models.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
}

// Config returns the server limits, or nil when they were never loaded
func (c *Cache) Config() *models.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.config == nil {
		return nil
	}
	cfg := *c.config
	return &cfg
}

func (c *Cache) SetTasks(tasks []models.Task) {
	m := Build(tasks, taskID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = m
}

func (c *Cache) SetStories(stories []models.Story) {
	m := Build(stories, storyID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stories = m
}

func (c *Cache) SetSprints(sprints []models.Sprint) {
	m := Build(sprints, sprintID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sprints = m
}

func (c *Cache) SetTags(tags []models.Tag) {
	m := Build(tags, tagID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = m
}

func (c *Cache) SetTagAssignments(assignments []models.TagAssignment) {
	m := Build(assignments, assignmentID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments = m
}

func (c *Cache) SetStoryRelationships(rels []models.StoryRelationship) {
	m := Build(rels, relationshipID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relationships = m
}

func (c *Cache) PutTask(t models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[t.ID] = t
}

func (c *Cache) PutStory(s models.Story) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stories[s.ID] = s
}

func (c *Cache) PutSprint(s models.Sprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sprints[s.ID] = s
}

func (c *Cache) PutTag(t models.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[t.ID] = t
}

func (c *Cache) PutTagAssignment(a models.TagAssignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments[a.ID] = a
}

// RemoveTagAssignment drops every assignment joining tagID to storyID and
// reports how many were removed.
func (c *Cache) RemoveTagAssignment(tagID, storyID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, a := range c.assignments {
		if a.TagID == tagID && a.StoryID == storyID {
			delete(c.assignments, id)
			n++
		}
	}
	return n
}

func (c *Cache) PutStoryRelationship(r models.StoryRelationship) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relationships[r.ID] = r
}

func (c *Cache) RemoveStoryRelationship(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.relationships, id)
}

func (c *Cache) Task(id string) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	return t, ok
}

// TaskBySqid looks a task up by its short code
func (c *Cache) TaskBySqid(sqid string) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tasks {
		if t.Sqid == sqid {
			return t, true
		}
	}
	return models.Task{}, false
}

func (c *Cache) Story(id string) (models.Story, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stories[id]
	return s, ok
}

func (c *Cache) Sprint(id string) (models.Sprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sprints[id]
	return s, ok
}

func (c *Cache) Tag(id string) (models.Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tags[id]
	return t, ok
}

// Tasks returns a copy of the task map
func (c *Cache) Tasks() map[string]models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.tasks)
}

func (c *Cache) Stories() map[string]models.Story {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.stories)
}

func (c *Cache) Sprints() map[string]models.Sprint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.sprints)
}

func (c *Cache) Tags() map[string]models.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.tags)
}

func (c *Cache) TagAssignments() map[int]models.TagAssignment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.assignments)
}

func (c *Cache) StoryRelationships() map[int]models.StoryRelationship {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.relationships)
}

// Indices recomputes the derived indices from the current contents
func (c *Cache) Indices() Indices {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Indices{
		StoriesBySprintID: StoriesBySprintID(c.stories),
		TagIDsByStoryID:   TagIDsByStoryID(c.assignments),
		TasksByStoryID:    TasksByStoryID(c.tasks),
	}
}

func clone[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
