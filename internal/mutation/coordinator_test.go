package mutation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/todosky/internal/api"
	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/cache"
	"github.com/tgienger/todosky/internal/models"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	putTasks    []api.PutTaskReq
	putStories  []api.PutStoryReq
	createTasks []api.CreateTaskReq

	failCreateAt int // 1-based index of the CreateTask call to fail, 0 never
	err          error

	assignment *models.TagAssignment
	allAssign  []models.TagAssignment
}

func (f *fakeAPI) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeAPI) UpdateTask(_ context.Context, req api.PutTaskReq) error {
	if err := f.record("UpdateTask"); err != nil {
		return err
	}
	f.putTasks = append(f.putTasks, req)
	return nil
}

func (f *fakeAPI) UpdateStory(_ context.Context, req api.PutStoryReq) error {
	if err := f.record("UpdateStory"); err != nil {
		return err
	}
	f.putStories = append(f.putStories, req)
	return nil
}

func (f *fakeAPI) CreateTask(_ context.Context, req api.CreateTaskReq) (*models.Task, error) {
	f.record("CreateTask")
	f.createTasks = append(f.createTasks, req)
	if f.failCreateAt > 0 && len(f.createTasks) == f.failCreateAt {
		return nil, &api.HTTPError{StatusCode: 500, URL: "http://x/api/create_task"}
	}
	return &models.Task{ID: "new-" + req.Title, Title: req.Title, StoryID: req.StoryID, BulkTask: req.BulkTask, Status: models.StatusBacklog}, nil
}

func (f *fakeAPI) CreateStory(_ context.Context, req api.CreateStoryReq) (*models.Story, error) {
	if err := f.record("CreateStory"); err != nil {
		return nil, err
	}
	return &models.Story{ID: "story-new", Title: req.Title, SprintID: req.SprintID, Status: models.StatusBacklog}, nil
}

func (f *fakeAPI) CreateSprint(context.Context, api.CreateSprintReq) (*models.Sprint, error) {
	return nil, f.record("CreateSprint")
}

func (f *fakeAPI) CreateTag(context.Context, api.CreateTagReq) (*models.Tag, error) {
	return nil, f.record("CreateTag")
}

func (f *fakeAPI) CreateTagAssignment(context.Context, string, string) (*models.TagAssignment, error) {
	if err := f.record("CreateTagAssignment"); err != nil {
		return nil, err
	}
	return f.assignment, nil
}

func (f *fakeAPI) DestroyTagAssignment(context.Context, string, string) error {
	return f.record("DestroyTagAssignment")
}

func (f *fakeAPI) CreateStoryRelationship(_ context.Context, req api.CreateStoryRelationshipReq) (*models.StoryRelationship, error) {
	if err := f.record("CreateStoryRelationship"); err != nil {
		return nil, err
	}
	return &models.StoryRelationship{ID: 5, StoryIDA: req.StoryIDA, StoryIDB: req.StoryIDB, Relation: req.Relation}, nil
}

func (f *fakeAPI) DestroyStoryRelationshipByID(context.Context, int) error {
	return f.record("DestroyStoryRelationshipByID")
}

func (f *fakeAPI) CreateComment(_ context.Context, taskID, text string) (*models.TaskComment, error) {
	if err := f.record("CreateComment"); err != nil {
		return nil, err
	}
	return &models.TaskComment{ID: 1, TaskID: taskID, Text: text}, nil
}

func (f *fakeAPI) UpdateComment(context.Context, int, string) error {
	return f.record("UpdateComment")
}

func (f *fakeAPI) GetSprints(context.Context) ([]models.Sprint, error) {
	f.record("GetSprints")
	return []models.Sprint{{ID: "p1"}, {ID: "p-new"}}, nil
}

func (f *fakeAPI) GetTags(context.Context) ([]models.Tag, error) {
	f.record("GetTags")
	return []models.Tag{{ID: "g-new"}}, nil
}

func (f *fakeAPI) GetTagAssignments(context.Context) ([]models.TagAssignment, error) {
	f.record("GetTagAssignments")
	return f.allAssign, nil
}

func (f *fakeAPI) GetStoryRelationships(context.Context) ([]models.StoryRelationship, error) {
	f.record("GetStoryRelationships")
	return nil, nil
}

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*Coordinator, *fakeAPI, *cache.Cache, *[]broadcast.Message) {
	t.Helper()
	c := cache.New()
	c.SetSprints([]models.Sprint{{ID: "p1", Title: "March", StartDate: "2024-03-01", EndDate: "2024-03-03"}})
	c.SetStories([]models.Story{
		{ID: "s1", Title: "Story", Status: models.StatusDoing, SprintID: "p1"},
		{ID: "s2", Title: "Next", Status: models.StatusBacklog, SprintID: "p1"},
	})
	c.SetTasks([]models.Task{
		{ID: "t1", Title: "Task", Description: "desc", Status: models.StatusBacklog, StoryID: strPtr("s1")},
		{ID: "t2", Title: "Loose", Status: models.StatusDoing},
	})

	fake := &fakeAPI{}
	var published []broadcast.Message
	bus := broadcast.NewLocal()
	bus.Subscribe(func(m broadcast.Message) { published = append(published, m) })

	co := New(fake, c, bus, nil)
	co.now = func() time.Time { return time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC) }
	return co, fake, c, &published
}

func TestUpdateTaskNoDiffSkipsNetwork(t *testing.T) {
	co, fake, _, published := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		change TaskChange
	}{
		{name: "empty change", change: TaskChange{}},
		{name: "same values", change: TaskChange{
			Status:      statusPtr(models.StatusBacklog),
			Title:       strPtr("Task"),
			Description: strPtr("desc"),
			StoryID:     strPtr("s1"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := co.UpdateTask(ctx, "t1", tt.change)
			require.NoError(t, err)
			assert.True(t, res.Skipped)
		})
	}

	res, err := co.UpdateTask(ctx, "t2", TaskChange{ClearStory: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	assert.Empty(t, fake.calls)
	assert.Empty(t, *published)
}

func TestMoveTaskPassesOtherFieldsThrough(t *testing.T) {
	co, fake, c, published := setup(t)

	res, err := co.MoveTask(context.Background(), "t1", models.StatusDone)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	require.Len(t, fake.putTasks, 1)
	sent := fake.putTasks[0]
	assert.Equal(t, "t1", sent.ID)
	assert.Equal(t, models.StatusDone, sent.Status)
	assert.Equal(t, "Task", sent.Title)
	assert.Equal(t, "desc", sent.Description)
	require.NotNil(t, sent.StoryID)
	assert.Equal(t, "s1", *sent.StoryID)

	cached, ok := c.Task("t1")
	require.True(t, ok)
	assert.Equal(t, models.StatusDone, cached.Status)
	assert.True(t, cached.Edited)

	assert.Equal(t, []broadcast.Message{{Type: broadcast.TaskMutated, TaskID: "t1"}}, *published)
}

func TestUpdateTaskValidation(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*cache.Cache)
		change TaskChange
		field  string
	}{
		{name: "empty title", change: TaskChange{Title: strPtr("  ")}, field: "title"},
		{name: "empty status", change: TaskChange{Status: statusPtr("")}, field: "status"},
		{name: "unknown status", change: TaskChange{Status: statusPtr("LATER")}, field: "status"},
		{name: "unknown story", change: TaskChange{StoryID: strPtr("ghost")}, field: "story_id"},
		{
			name:   "title too long",
			setup:  func(c *cache.Cache) { c.SetConfig(&models.Config{TaskTitleMaxLen: 5}) },
			change: TaskChange{Title: strPtr("much too long")},
			field:  "title",
		},
		{
			name:   "description too long",
			setup:  func(c *cache.Cache) { c.SetConfig(&models.Config{TaskDescMaxLen: 3}) },
			change: TaskChange{Description: strPtr("four")},
			field:  "description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			co, fake, c, published := setup(t)
			if tt.setup != nil {
				tt.setup(c)
			}
			_, err := co.UpdateTask(context.Background(), "t1", tt.change)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "task", verr.Entity)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, fake.calls)
			assert.Empty(t, *published)

			cached, _ := c.Task("t1")
			assert.Equal(t, "Task", cached.Title)
		})
	}
}

func TestUpdateTaskNotCached(t *testing.T) {
	co, fake, _, _ := setup(t)
	_, err := co.UpdateTask(context.Background(), "missing", TaskChange{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotCached)
	assert.Empty(t, fake.calls)
}

func TestUpdateTaskFailureLeavesCache(t *testing.T) {
	co, fake, c, published := setup(t)
	fake.err = errors.New("connection refused")

	_, err := co.UpdateTask(context.Background(), "t1", TaskChange{Title: strPtr("Renamed")})
	require.Error(t, err)
	assert.Equal(t, []string{"UpdateTask"}, fake.calls)

	cached, _ := c.Task("t1")
	assert.Equal(t, "Task", cached.Title)
	assert.Empty(t, *published)
}

func TestUpdateTaskDetachStory(t *testing.T) {
	co, fake, c, _ := setup(t)

	_, err := co.UpdateTask(context.Background(), "t1", TaskChange{ClearStory: true})
	require.NoError(t, err)
	require.Len(t, fake.putTasks, 1)
	assert.Nil(t, fake.putTasks[0].StoryID)

	cached, _ := c.Task("t1")
	assert.False(t, cached.HasStory())
}

func TestUpdateStory(t *testing.T) {
	co, fake, c, published := setup(t)
	ctx := context.Background()

	res, err := co.UpdateStory(ctx, "s1", StoryChange{Title: strPtr("Story")})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, fake.calls)

	_, err = co.UpdateStory(ctx, "s1", StoryChange{SprintID: strPtr("")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sprint_id", verr.Field)

	_, err = co.UpdateStory(ctx, "s1", StoryChange{Status: statusPtr(models.StatusArchive), SprintID: strPtr("p2")})
	require.NoError(t, err)
	require.Len(t, fake.putStories, 1)
	assert.Equal(t, api.PutStoryReq{ID: "s1", Status: models.StatusArchive, Title: "Story", SprintID: "p2"}, fake.putStories[0])

	cached, _ := c.Story("s1")
	assert.Equal(t, "p2", cached.SprintID)
	assert.Len(t, *published, 1)
}

func TestBulkCreateTasksDateRange(t *testing.T) {
	co, fake, c, published := setup(t)

	res, err := co.BulkCreateTasks(context.Background(), BulkTaskRequest{Title: "standup", Description: "d", StoryID: "s1"})
	require.NoError(t, err)

	require.Len(t, fake.createTasks, 3)
	wantPrefixes := []string{"[03.01] ", "[03.02] ", "[03.03] "}
	for i, req := range fake.createTasks {
		prefix := req.Title[:8]
		assert.Equal(t, wantPrefixes[i], prefix)
		assert.Len(t, prefix, 8)
		assert.Equal(t, wantPrefixes[i]+"standup", req.Title)
		assert.True(t, req.BulkTask)
		require.NotNil(t, req.StoryID)
		assert.Equal(t, "s1", *req.StoryID)
		assert.Equal(t, "d", req.Description)
	}
	assert.Equal(t, []string{"[03.01] standup", "[03.02] standup", "[03.03] standup"}, res.Titles)
	assert.Len(t, res.Tasks, 3)
	assert.Len(t, *published, 3)

	_, ok := c.Task("new-[03.02] standup")
	assert.True(t, ok)
}

func TestBulkCreateTasksStopsAtFirstFailure(t *testing.T) {
	co, fake, c, _ := setup(t)
	fake.failCreateAt = 2

	res, err := co.BulkCreateTasks(context.Background(), BulkTaskRequest{Title: "x", StoryID: "s1"})
	require.Error(t, err)
	var herr *api.HTTPError
	assert.ErrorAs(t, err, &herr)

	assert.Len(t, fake.createTasks, 2)
	assert.Equal(t, []string{"[03.01] x"}, res.Titles)
	_, ok := c.Task("new-[03.01] x")
	assert.True(t, ok, "tasks created before the failure are kept")
}

func TestBulkCreateTasksNeedsCachedStory(t *testing.T) {
	co, fake, _, _ := setup(t)
	_, err := co.BulkCreateTasks(context.Background(), BulkTaskRequest{Title: "x", StoryID: "ghost"})
	assert.ErrorIs(t, err, ErrNotCached)
	assert.Empty(t, fake.calls)
}

func TestBulkCreateTasksValidatesBeforeSending(t *testing.T) {
	co, fake, c, _ := setup(t)
	c.SetConfig(&models.Config{TaskTitleMaxLen: 10})

	_, err := co.BulkCreateTasks(context.Background(), BulkTaskRequest{Title: "long title", StoryID: "s1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, fake.calls)
}

func TestSprintDaysCrossesMonth(t *testing.T) {
	start := time.Date(2024, 2, 28, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	days := SprintDays(start, end)
	require.Len(t, days, 3)
	assert.Equal(t, "[02.28] a", BulkTitle(days[0], "a"))
	assert.Equal(t, "[02.29] a", BulkTitle(days[1], "a"))
	assert.Equal(t, "[03.01] a", BulkTitle(days[2], "a"))
}

func TestCreateTask(t *testing.T) {
	co, fake, c, published := setup(t)

	_, err := co.CreateTask(context.Background(), NewTask{Title: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, fake.calls)

	task, err := co.CreateTask(context.Background(), NewTask{Title: "fresh", StoryID: strPtr("s2")})
	require.NoError(t, err)
	require.NotNil(t, task)
	_, ok := c.Task(task.ID)
	assert.True(t, ok)
	require.Len(t, *published, 1)
	assert.Equal(t, task.ID, (*published)[0].TaskID)
}

func TestCreateStory(t *testing.T) {
	co, _, c, _ := setup(t)

	_, err := co.CreateStory(context.Background(), NewStory{Title: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sprint_id", verr.Field)

	story, err := co.CreateStory(context.Background(), NewStory{Title: "x", SprintID: "p1"})
	require.NoError(t, err)
	_, ok := c.Story(story.ID)
	assert.True(t, ok)
}

func TestCreateSprintReloadsOnEmptyBody(t *testing.T) {
	co, fake, c, _ := setup(t)
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	err := co.CreateSprint(context.Background(), NewSprint{Title: "April", Start: start, End: start.AddDate(0, 0, -1)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, co.CreateSprint(context.Background(), NewSprint{Title: "April", Start: start, End: start.AddDate(0, 0, 13)}))
	assert.Equal(t, []string{"CreateSprint", "GetSprints"}, fake.calls)
	_, ok := c.Sprint("p-new")
	assert.True(t, ok)
}

func TestCreateTagReloadsOnEmptyBody(t *testing.T) {
	co, fake, c, _ := setup(t)
	require.NoError(t, co.CreateTag(context.Background(), "infra", ""))
	assert.Equal(t, []string{"CreateTag", "GetTags"}, fake.calls)
	_, ok := c.Tag("g-new")
	assert.True(t, ok)
}

func TestSetTagAssigned(t *testing.T) {
	co, fake, c, _ := setup(t)
	ctx := context.Background()

	res, err := co.SetTagAssigned(ctx, "g1", "s1", false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	fake.assignment = &models.TagAssignment{ID: 10, TagID: "g1", StoryID: "s1"}
	_, err = co.SetTagAssigned(ctx, "g1", "s1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, c.Indices().TagIDsByStoryID["s1"])

	res, err = co.SetTagAssigned(ctx, "g1", "s1", true)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	_, err = co.SetTagAssigned(ctx, "g1", "s1", false)
	require.NoError(t, err)
	assert.Empty(t, c.Indices().TagIDsByStoryID["s1"])

	assert.Equal(t, []string{"CreateTagAssignment", "DestroyTagAssignment"}, fake.calls)
}

func TestSetTagAssignedReloadsOnEmptyBody(t *testing.T) {
	co, fake, c, _ := setup(t)
	fake.allAssign = []models.TagAssignment{{ID: 3, TagID: "g2", StoryID: "s2"}}

	_, err := co.SetTagAssigned(context.Background(), "g2", "s2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateTagAssignment", "GetTagAssignments"}, fake.calls)
	assert.Equal(t, []string{"g2"}, c.Indices().TagIDsByStoryID["s2"])
}

func TestContinueStory(t *testing.T) {
	co, fake, c, _ := setup(t)
	ctx := context.Background()

	_, err := co.ContinueStory(ctx, "s1", "s1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = co.ContinueStory(ctx, "s1", "ghost")
	assert.ErrorIs(t, err, ErrNotCached)

	_, err = co.ContinueStory(ctx, "s1", "s2")
	require.NoError(t, err)
	rels := c.StoryRelationships()
	require.Contains(t, rels, 5)
	assert.Equal(t, models.RelationContinuedBy, rels[5].Relation)

	res, err := co.ContinueStory(ctx, "s1", "s2")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.NoError(t, co.DestroyStoryRelationship(ctx, 5))
	assert.Empty(t, c.StoryRelationships())
	assert.Equal(t, []string{"CreateStoryRelationship", "DestroyStoryRelationshipByID"}, fake.calls)
}

func TestComments(t *testing.T) {
	co, fake, c, published := setup(t)
	ctx := context.Background()
	c.SetConfig(&models.Config{CommentMaxLen: 10})

	_, err := co.CreateComment(ctx, "t1", strings.Repeat("x", 11))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "comment", verr.Entity)

	comment, err := co.CreateComment(ctx, "t1", "hello")
	require.NoError(t, err)
	require.NotNil(t, comment)

	_, res, err := co.UpdateComment(ctx, *comment, "hello")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	edited, _, err := co.UpdateComment(ctx, *comment, "bye")
	require.NoError(t, err)
	assert.Equal(t, "bye", edited.Text)
	assert.True(t, edited.Edited)

	assert.Equal(t, []string{"CreateComment", "UpdateComment"}, fake.calls)
	assert.Equal(t, []broadcast.Message{
		{Type: broadcast.CommentMutated, TaskID: "t1"},
		{Type: broadcast.CommentMutated, TaskID: "t1"},
	}, *published)
}

func statusPtr(s models.Status) *models.Status { return &s }
