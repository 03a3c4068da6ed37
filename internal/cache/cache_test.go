package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/todosky/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Task
		want    map[string]string
	}{
		{name: "nil", records: nil, want: map[string]string{}},
		{name: "empty", records: []models.Task{}, want: map[string]string{}},
		{
			name:    "unique",
			records: []models.Task{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
			want:    map[string]string{"a": "A", "b": "B"},
		},
		{
			name:    "last wins",
			records: []models.Task{{ID: "a", Title: "first"}, {ID: "a", Title: "second"}},
			want:    map[string]string{"a": "second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.records, taskID)
			require.NotNil(t, got)
			titles := map[string]string{}
			for id, task := range got {
				titles[id] = task.Title
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestBuildIdempotent(t *testing.T) {
	records := []models.Story{
		{ID: "s1", Title: "one", SprintID: "p1"},
		{ID: "s2", Title: "two", SprintID: "p1"},
		{ID: "s3", Title: "three", SprintID: "p2"},
	}
	first := Build(records, storyID)
	second := Build(records, storyID)
	assert.Equal(t, first, second)

	reversed := []models.Story{records[2], records[1], records[0]}
	assert.Equal(t, first, Build(reversed, storyID))
}

func TestIndices(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := New()
	c.SetStories([]models.Story{
		{ID: "s2", SprintID: "p1", CreatedAt: base.Add(time.Hour)},
		{ID: "s1", SprintID: "p1", CreatedAt: base},
		{ID: "s3", SprintID: "p2", CreatedAt: base},
	})
	c.SetTasks([]models.Task{
		{ID: "t1", StoryID: strPtr("s1"), CreatedAt: base},
		{ID: "t2", StoryID: strPtr("s1"), CreatedAt: base},
		{ID: "t3", StoryID: nil},
	})
	c.SetTagAssignments([]models.TagAssignment{
		{ID: 1, TagID: "g1", StoryID: "s1"},
		{ID: 2, TagID: "g2", StoryID: "s1"},
		{ID: 3, TagID: "g1", StoryID: "s2"},
	})

	idx := c.Indices()

	require.Len(t, idx.StoriesBySprintID["p1"], 2)
	assert.Equal(t, "s1", idx.StoriesBySprintID["p1"][0].ID)
	assert.Equal(t, "s2", idx.StoriesBySprintID["p1"][1].ID)
	assert.Len(t, idx.StoriesBySprintID["p2"], 1)

	assert.Equal(t, []string{"g1", "g2"}, idx.TagIDsByStoryID["s1"])
	assert.Equal(t, []string{"g1"}, idx.TagIDsByStoryID["s2"])
	assert.NotContains(t, idx.TagIDsByStoryID, "s3")

	require.Len(t, idx.TasksByStoryID["s1"], 2)
	assert.Equal(t, "t1", idx.TasksByStoryID["s1"][0].ID)
	for _, group := range idx.TasksByStoryID {
		for _, task := range group {
			assert.NotEqual(t, "t3", task.ID)
		}
	}

	assert.Equal(t, idx, c.Indices())
}

func TestRemoveTagAssignmentDropsDuplicates(t *testing.T) {
	c := New()
	c.SetTagAssignments([]models.TagAssignment{
		{ID: 1, TagID: "g1", StoryID: "s1"},
		{ID: 2, TagID: "g1", StoryID: "s1"},
		{ID: 3, TagID: "g2", StoryID: "s1"},
	})

	assert.Equal(t, 2, c.RemoveTagAssignment("g1", "s1"))
	assert.Equal(t, []string{"g2"}, c.Indices().TagIDsByStoryID["s1"])
	assert.Equal(t, 0, c.RemoveTagAssignment("g1", "s1"))
}

func TestGettersReturnCopies(t *testing.T) {
	c := New()
	c.PutTask(models.Task{ID: "t1", Title: "a"})

	tasks := c.Tasks()
	tasks["t1"] = models.Task{ID: "t1", Title: "changed"}
	delete(tasks, "t1")

	got, ok := c.Task("t1")
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)

	assert.Nil(t, c.Config())
	c.SetConfig(&models.Config{TaskTitleMaxLen: 10})
	cfg := c.Config()
	cfg.TaskTitleMaxLen = 99
	assert.Equal(t, 10, c.Config().TaskTitleMaxLen)
}

func TestTaskBySqid(t *testing.T) {
	c := New()
	c.SetTasks([]models.Task{{ID: "t1", Sqid: "xYz"}})

	got, ok := c.TaskBySqid("xYz")
	require.True(t, ok)
	assert.Equal(t, "t1", got.ID)

	_, ok = c.TaskBySqid("nope")
	assert.False(t, ok)
}

func TestConcurrentSetters(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetTasks([]models.Task{{ID: "t1"}})
			_ = c.Indices()
		}()
		go func() {
			defer wg.Done()
			c.SetStories([]models.Story{{ID: "s1"}})
			_ = c.Stories()
		}()
	}
	wg.Wait()
	assert.Len(t, c.Tasks(), 1)
	assert.Len(t, c.Stories(), 1)
}
