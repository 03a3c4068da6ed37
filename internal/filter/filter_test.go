package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/todosky/internal/models"
)

func strPtr(s string) *string { return &s }

func fixtures() (map[string]models.Story, map[string][]string) {
	stories := map[string]models.Story{
		"tagged":   {ID: "tagged", SprintID: "p1", Status: models.StatusDoing},
		"untagged": {ID: "untagged", SprintID: "p1", Status: models.StatusDoing},
		"other":    {ID: "other", SprintID: "p2", Status: models.StatusDoing},
		"archived": {ID: "archived", SprintID: "p1", Status: models.StatusArchive},
		"dupe":     {ID: "dupe", SprintID: "p1", Status: models.StatusDuplicate},
	}
	tags := map[string][]string{
		"tagged":   {"g1", "g2"},
		"other":    {"g1"},
		"archived": {"g1"},
		"dupe":     {"g1"},
	}
	return stories, tags
}

func TestTaskVisibility(t *testing.T) {
	stories, tags := fixtures()
	sel := Selection{SprintID: "p1", ActiveTags: NewTagSet("g1")}

	tests := []struct {
		name    string
		storyID *string
		sel     Selection
		want    bool
	}{
		{name: "no story", storyID: nil, sel: sel, want: true},
		{name: "missing story", storyID: strPtr("ghost"), sel: sel, want: false},
		{name: "other sprint", storyID: strPtr("other"), sel: sel, want: false},
		{name: "archived story", storyID: strPtr("archived"), sel: sel, want: false},
		{name: "duplicate story", storyID: strPtr("dupe"), sel: sel, want: false},
		{name: "tag matches", storyID: strPtr("tagged"), sel: sel, want: true},
		{name: "second tag matches", storyID: strPtr("tagged"), sel: Selection{SprintID: "p1", ActiveTags: NewTagSet("g2")}, want: true},
		{name: "no active tag", storyID: strPtr("tagged"), sel: Selection{SprintID: "p1", ActiveTags: NewTagSet()}, want: false},
		{name: "nil tag set", storyID: strPtr("tagged"), sel: Selection{SprintID: "p1"}, want: false},
		{name: "untagged story", storyID: strPtr("untagged"), sel: sel, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := models.Task{ID: "t", StoryID: tt.storyID}
			assert.Equal(t, tt.want, Task(task, stories, tt.sel, tags))
		})
	}
}

func TestTaskWithoutStoryAlwaysVisible(t *testing.T) {
	stories, tags := fixtures()
	task := models.Task{ID: "loose", StoryID: nil}
	for _, sprint := range []string{"", "p1", "p2", "unknown"} {
		for _, active := range []TagSet{nil, NewTagSet(), NewTagSet("g1"), NewTagSet("g1", "g2", "zz")} {
			assert.True(t, Task(task, stories, Selection{SprintID: sprint, ActiveTags: active}, tags))
			assert.True(t, Task(task, nil, Selection{SprintID: sprint, ActiveTags: active}, nil))
		}
	}
}

func TestUntaggedStoryHidesTasks(t *testing.T) {
	stories, tags := fixtures()
	task := models.Task{ID: "t", StoryID: strPtr("untagged")}
	for _, active := range []TagSet{nil, NewTagSet(), NewTagSet("g1"), NewTagSet("g1", "g2")} {
		assert.False(t, Task(task, stories, Selection{SprintID: "p1", ActiveTags: active}, tags))
	}
}

func TestStoryVisibility(t *testing.T) {
	for _, status := range models.Statuses() {
		story := models.Story{ID: "s", SprintID: "p1", Status: status}
		want := status != models.StatusArchive && status != models.StatusDuplicate
		assert.Equal(t, want, Story(story, "p1"), "status %s", status)
		assert.False(t, Story(story, "p2"), "status %s in other sprint", status)
	}
}

func TestSliceHelpers(t *testing.T) {
	stories, tags := fixtures()
	sel := Selection{SprintID: "p1", ActiveTags: NewTagSet("g1")}
	tasks := []models.Task{
		{ID: "a", StoryID: strPtr("tagged")},
		{ID: "b", StoryID: strPtr("untagged")},
		{ID: "c"},
	}

	visible := Tasks(tasks, stories, sel, tags)
	require.Len(t, visible, 2)
	assert.Equal(t, "a", visible[0].ID)
	assert.Equal(t, "c", visible[1].ID)

	storyList := []models.Story{stories["tagged"], stories["archived"], stories["other"]}
	got := Stories(storyList, "p1")
	require.Len(t, got, 1)
	assert.Equal(t, "tagged", got[0].ID)
}

func TestBucketTasks(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Status: models.StatusDone},
		{ID: "2", Status: models.StatusBacklog},
		{ID: "3", Status: "ON HOLD"},
		{ID: "4", Status: models.StatusDone},
		{ID: "5", Status: models.StatusDeadlinePassed},
	}

	buckets := BucketTasks(tasks)

	known := models.Statuses()
	require.Len(t, buckets, len(known)+1)
	for i, s := range known {
		assert.Equal(t, s, buckets[i].Status)
	}
	assert.Equal(t, models.Status("ON HOLD"), buckets[len(known)].Status)

	assert.Equal(t, []string{"2"}, ids(buckets[0].Tasks))
	assert.Empty(t, buckets[1].Tasks)
	assert.Equal(t, []string{"1", "4"}, ids(buckets[2].Tasks))

	seen := map[string]int{}
	for _, b := range buckets {
		for _, task := range b.Tasks {
			assert.Equal(t, b.Status, task.Status)
			seen[task.ID]++
		}
	}
	require.Len(t, seen, len(tasks))
	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s", id)
	}
}

func TestBucketTasksEmpty(t *testing.T) {
	buckets := BucketTasks(nil)
	require.Len(t, buckets, len(models.Statuses()))
	for _, b := range buckets {
		assert.NotNil(t, b.Tasks)
		assert.Empty(t, b.Tasks)
	}
}

func TestSortTasks(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}
	SortTasks(tasks)
	assert.Equal(t, []string{"a", "b", "c"}, ids(tasks))
}

func TestEmphasis(t *testing.T) {
	e := NewEmphasis()
	assert.Equal(t, OpacityNormal, e.Opacity("a"))

	assert.True(t, e.ToggleSolo("a"))
	assert.Equal(t, OpacityNormal, e.Opacity("a"))
	assert.Equal(t, OpacityDimmed, e.Opacity("b"))

	assert.True(t, e.ToggleMute("a"))
	assert.Equal(t, OpacityMuted, e.Opacity("a"))

	assert.False(t, e.ToggleSolo("a"))
	assert.Equal(t, OpacityNormal, e.Opacity("b"))
	assert.True(t, e.IsMuted("a"))

	e.Clear()
	assert.False(t, e.IsMuted("a"))
	assert.Equal(t, OpacityNormal, e.Opacity("a"))
}

func TestEmphasisDoesNotAffectVisibility(t *testing.T) {
	stories, tags := fixtures()
	sel := Selection{SprintID: "p1", ActiveTags: NewTagSet("g1")}
	task := models.Task{ID: "t", StoryID: strPtr("tagged")}

	e := NewEmphasis()
	e.ToggleMute("tagged")
	e.ToggleSolo("other")
	assert.True(t, Task(task, stories, sel, tags))
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
