package cache

import (
	"sort"

	"github.com/tgienger/todosky/internal/models"
)

// Indices are the one-to-many lookups the filter and views read
type Indices struct {
	StoriesBySprintID map[string][]models.Story
	TagIDsByStoryID   map[string][]string
	TasksByStoryID    map[string][]models.Task
}

// StoriesBySprintID groups stories by the sprint they belong to
func StoriesBySprintID(stories map[string]models.Story) map[string][]models.Story {
	out := map[string][]models.Story{}
	for _, s := range stories {
		out[s.SprintID] = append(out[s.SprintID], s)
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool {
			return earlier(group[i].CreatedAt.UnixNano(), group[i].ID, group[j].CreatedAt.UnixNano(), group[j].ID)
		})
	}
	return out
}

// TagIDsByStoryID groups tag ids by story. Duplicate assignments of the
// same tag produce duplicate ids.
func TagIDsByStoryID(assignments map[int]models.TagAssignment) map[string][]string {
	sorted := make([]models.TagAssignment, 0, len(assignments))
	for _, a := range assignments {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := map[string][]string{}
	for _, a := range sorted {
		out[a.StoryID] = append(out[a.StoryID], a.TagID)
	}
	return out
}

// TasksByStoryID groups tasks by parent story. Tasks without a story are
// left out.
func TasksByStoryID(tasks map[string]models.Task) map[string][]models.Task {
	out := map[string][]models.Task{}
	for _, t := range tasks {
		if t.StoryID == nil {
			continue
		}
		out[*t.StoryID] = append(out[*t.StoryID], t)
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool {
			return earlier(group[i].CreatedAt.UnixNano(), group[i].ID, group[j].CreatedAt.UnixNano(), group[j].ID)
		})
	}
	return out
}

func earlier(aTime int64, aID string, bTime int64, bID string) bool {
	if aTime != bTime {
		return aTime < bTime
	}
	return aID < bID
}
