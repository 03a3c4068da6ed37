// Package filter decides which tasks and stories a sprintboard shows and
// groups the visible tasks by status. Everything here is a pure function of
// its inputs.
package filter

import (
	"sort"

	"github.com/tgienger/todosky/internal/models"
)

// TagSet is a set of tag ids
type TagSet map[string]struct{}

func NewTagSet(ids ...string) TagSet {
	s := make(TagSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s TagSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in sorted order
func (s TagSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Selection is the user's current board filter
type Selection struct {
	SprintID   string
	ActiveTags TagSet
}

// Task reports whether task is visible under sel. Rules are checked in
// order and the first decisive one wins.
func Task(task models.Task, storiesByID map[string]models.Story, sel Selection, tagIDsByStoryID map[string][]string) bool {
	if task.StoryID == nil {
		return true
	}
	story, ok := storiesByID[*task.StoryID]
	if !ok {
		return false
	}
	if story.SprintID != sel.SprintID {
		return false
	}
	if !story.IsActive() {
		return false
	}
	// A story with no tags never matches.
	for _, id := range tagIDsByStoryID[story.ID] {
		if sel.ActiveTags.Has(id) {
			return true
		}
	}
	return false
}

// Story reports whether story belongs to sprintID and is active
func Story(story models.Story, sprintID string) bool {
	return story.SprintID == sprintID && story.IsActive()
}

// Tasks returns the visible subset of tasks, keeping input order
func Tasks(tasks []models.Task, storiesByID map[string]models.Story, sel Selection, tagIDsByStoryID map[string][]string) []models.Task {
	out := []models.Task{}
	for _, t := range tasks {
		if Task(t, storiesByID, sel, tagIDsByStoryID) {
			out = append(out, t)
		}
	}
	return out
}

// Stories returns the visible subset of stories, keeping input order
func Stories(stories []models.Story, sprintID string) []models.Story {
	out := []models.Story{}
	for _, s := range stories {
		if Story(s, sprintID) {
			out = append(out, s)
		}
	}
	return out
}

// Bucket holds the tasks sharing one status
type Bucket struct {
	Status models.Status
	Tasks  []models.Task
}

// BucketTasks partitions tasks by status. There is one bucket per known
// status in declared order, empty ones included. Statuses outside the
// enumeration get trailing buckets in first-seen order.
func BucketTasks(tasks []models.Task) []Bucket {
	known := models.Statuses()
	buckets := make([]Bucket, len(known))
	pos := make(map[models.Status]int, len(known))
	for i, s := range known {
		buckets[i] = Bucket{Status: s, Tasks: []models.Task{}}
		pos[s] = i
	}
	for _, t := range tasks {
		i, ok := pos[t.Status]
		if !ok {
			i = len(buckets)
			buckets = append(buckets, Bucket{Status: t.Status, Tasks: []models.Task{}})
			pos[t.Status] = i
		}
		buckets[i].Tasks = append(buckets[i].Tasks, t)
	}
	return buckets
}

// SortTasks orders tasks oldest first, breaking ties by id
func SortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
