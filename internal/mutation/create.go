package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tgienger/todosky/internal/api"
	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/models"
)

// NewTask holds the fields of a task to create
type NewTask struct {
	Title       string
	Description string
	StoryID     *string
}

// CreateTask creates a task. The returned task is nil when the server
// answered with an empty body.
func (co *Coordinator) CreateTask(ctx context.Context, nt NewTask) (*models.Task, error) {
	if err := co.validateNewTask(nt.Title, nt.Description, nt.StoryID); err != nil {
		co.log.Warn("task create rejected", "error", err)
		return nil, err
	}
	return co.createTask(ctx, api.CreateTaskReq{
		Title:       nt.Title,
		Description: nt.Description,
		StoryID:     nt.StoryID,
	})
}

func (co *Coordinator) createTask(ctx context.Context, req api.CreateTaskReq) (*models.Task, error) {
	task, err := co.api.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	msg := broadcast.Message{Type: broadcast.TaskMutated}
	if task != nil {
		co.cache.PutTask(*task)
		msg.TaskID = task.ID
	}
	co.bus.Publish(msg)
	return task, nil
}

func (co *Coordinator) validateNewTask(title, desc string, storyID *string) error {
	if strings.TrimSpace(title) == "" {
		return required("task", "title")
	}
	if cfg := co.cache.Config(); cfg != nil {
		if exceeds(title, cfg.TaskTitleMaxLen) {
			return tooLong("task", "title", cfg.TaskTitleMaxLen)
		}
		if exceeds(desc, cfg.TaskDescMaxLen) {
			return tooLong("task", "description", cfg.TaskDescMaxLen)
		}
	}
	if storyID != nil {
		return co.checkStoryExists("task", *storyID)
	}
	return nil
}

// BulkTaskRequest describes one task per day of a story's sprint
type BulkTaskRequest struct {
	Title       string
	Description string
	StoryID     string
}

// BulkResult lists what a bulk creation managed to create
type BulkResult struct {
	// Titles of the tasks the server accepted, in creation order
	Titles []string
	// Tasks decoded from the server responses
	Tasks []models.Task
}

// BulkTitle prefixes title with the zero-padded month and day
func BulkTitle(day time.Time, title string) string {
	return fmt.Sprintf("[%02d.%02d] %s", int(day.Month()), day.Day(), title)
}

// SprintDays returns every UTC calendar day from start to end inclusive
func SprintDays(start, end time.Time) []time.Time {
	start = utcDay(start)
	end = utcDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BulkCreateTasks creates one task per day of the story's sprint, one
// request at a time. It stops at the first failure; tasks created before
// it are kept and reported.
func (co *Coordinator) BulkCreateTasks(ctx context.Context, req BulkTaskRequest) (BulkResult, error) {
	var res BulkResult

	story, ok := co.cache.Story(req.StoryID)
	if !ok {
		return res, fmt.Errorf("story %s: %w", req.StoryID, ErrNotCached)
	}
	sprint, ok := co.cache.Sprint(story.SprintID)
	if !ok {
		return res, fmt.Errorf("sprint %s: %w", story.SprintID, ErrNotCached)
	}
	start, err := sprint.Start()
	if err != nil {
		return res, fmt.Errorf("sprint %s start: %w", sprint.ID, err)
	}
	end, err := sprint.End()
	if err != nil {
		return res, fmt.Errorf("sprint %s end: %w", sprint.ID, err)
	}
	if end.Before(start) {
		return res, &ValidationError{Entity: "sprint", Field: "end_date", Reason: "is before start_date"}
	}

	days := SprintDays(start, end)
	titles := make([]string, len(days))
	for i, d := range days {
		titles[i] = BulkTitle(d, req.Title)
		if err := co.validateNewTask(titles[i], req.Description, &story.ID); err != nil {
			co.log.Warn("bulk create rejected", "error", err)
			return res, err
		}
	}

	storyID := story.ID
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		task, err := co.createTask(ctx, api.CreateTaskReq{
			Title:       title,
			Description: req.Description,
			StoryID:     &storyID,
			BulkTask:    true,
		})
		if err != nil {
			co.log.Error("bulk create stopped", "created", len(res.Titles), "remaining", len(titles)-len(res.Titles), "error", err)
			return res, fmt.Errorf("create %q: %w", title, err)
		}
		res.Titles = append(res.Titles, title)
		if task != nil {
			res.Tasks = append(res.Tasks, *task)
		}
	}
	co.log.Info("bulk create finished", "story_id", storyID, "created", len(res.Titles))
	return res, nil
}

// NewStory holds the fields of a story to create
type NewStory struct {
	Title       string
	Description string
	SprintID    string
}

func (co *Coordinator) CreateStory(ctx context.Context, ns NewStory) (*models.Story, error) {
	if err := co.validateNewStory(ns); err != nil {
		co.log.Warn("story create rejected", "error", err)
		return nil, err
	}
	story, err := co.api.CreateStory(ctx, api.CreateStoryReq{
		Title:       ns.Title,
		Description: ns.Description,
		SprintID:    ns.SprintID,
	})
	if err != nil {
		return nil, err
	}
	if story != nil {
		co.cache.PutStory(*story)
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return story, nil
}

func (co *Coordinator) validateNewStory(ns NewStory) error {
	switch {
	case strings.TrimSpace(ns.Title) == "":
		return required("story", "title")
	case ns.SprintID == "":
		return required("story", "sprint_id")
	}
	if cfg := co.cache.Config(); cfg != nil {
		if exceeds(ns.Title, cfg.StoryTitleMaxLen) {
			return tooLong("story", "title", cfg.StoryTitleMaxLen)
		}
		if exceeds(ns.Description, cfg.StoryDescMaxLen) {
			return tooLong("story", "description", cfg.StoryDescMaxLen)
		}
	}
	return nil
}

// NewSprint holds the fields of a sprint to create
type NewSprint struct {
	Title string
	Start time.Time
	End   time.Time
}

// CreateSprint creates a sprint and reloads the sprint list
func (co *Coordinator) CreateSprint(ctx context.Context, ns NewSprint) error {
	switch {
	case strings.TrimSpace(ns.Title) == "":
		return required("sprint", "title")
	case ns.Start.IsZero():
		return required("sprint", "start_date")
	case ns.End.IsZero():
		return required("sprint", "end_date")
	case ns.End.Before(ns.Start):
		return &ValidationError{Entity: "sprint", Field: "end_date", Reason: "is before start_date"}
	}
	if cfg := co.cache.Config(); cfg != nil && exceeds(ns.Title, cfg.SprintTitleMaxLen) {
		return tooLong("sprint", "title", cfg.SprintTitleMaxLen)
	}

	sprint, err := co.api.CreateSprint(ctx, api.CreateSprintReq{
		Title:     ns.Title,
		StartDate: ns.Start.UTC(),
		EndDate:   ns.End.UTC(),
	})
	if err != nil {
		return err
	}
	if sprint != nil {
		co.cache.PutSprint(*sprint)
	} else if err := co.reloadSprints(ctx); err != nil {
		return err
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return nil
}

func (co *Coordinator) reloadSprints(ctx context.Context) error {
	sprints, err := co.api.GetSprints(ctx)
	if err != nil {
		return fmt.Errorf("reload sprints: %w", err)
	}
	co.cache.SetSprints(sprints)
	return nil
}

// CreateTag creates a tag and reloads the tag list
func (co *Coordinator) CreateTag(ctx context.Context, title, description string) error {
	if strings.TrimSpace(title) == "" {
		return required("tag", "title")
	}
	if cfg := co.cache.Config(); cfg != nil {
		if exceeds(title, cfg.TagTitleMaxLen) {
			return tooLong("tag", "title", cfg.TagTitleMaxLen)
		}
		if exceeds(description, cfg.TagDescMaxLen) {
			return tooLong("tag", "description", cfg.TagDescMaxLen)
		}
	}

	tag, err := co.api.CreateTag(ctx, api.CreateTagReq{Title: title, Description: description})
	if err != nil {
		return err
	}
	if tag != nil {
		co.cache.PutTag(*tag)
	} else {
		tags, err := co.api.GetTags(ctx)
		if err != nil {
			return fmt.Errorf("reload tags: %w", err)
		}
		co.cache.SetTags(tags)
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return nil
}

// SetTagAssigned assigns or unassigns a tag on a story. Nothing is sent
// when the cache already reflects the wanted state.
func (co *Coordinator) SetTagAssigned(ctx context.Context, tagID, storyID string, assigned bool) (Result, error) {
	switch {
	case tagID == "":
		return Result{}, required("tag_assignment", "tag_id")
	case storyID == "":
		return Result{}, required("tag_assignment", "story_id")
	}

	has := false
	for _, id := range co.cache.Indices().TagIDsByStoryID[storyID] {
		if id == tagID {
			has = true
			break
		}
	}
	if has == assigned {
		return Result{Skipped: true}, nil
	}

	if !assigned {
		if err := co.api.DestroyTagAssignment(ctx, tagID, storyID); err != nil {
			return Result{}, err
		}
		co.cache.RemoveTagAssignment(tagID, storyID)
		co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
		return Result{}, nil
	}

	a, err := co.api.CreateTagAssignment(ctx, tagID, storyID)
	if err != nil {
		return Result{}, err
	}
	if a != nil {
		co.cache.PutTagAssignment(*a)
	} else {
		assignments, err := co.api.GetTagAssignments(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("reload tag assignments: %w", err)
		}
		co.cache.SetTagAssignments(assignments)
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return Result{}, nil
}

// ContinueStory records that story from continues into story to
func (co *Coordinator) ContinueStory(ctx context.Context, from, to string) (Result, error) {
	if from == to {
		return Result{}, &ValidationError{Entity: "story_relationship", Field: "story_id_b", Reason: "must differ from story_id_a"}
	}
	for _, id := range []string{from, to} {
		if _, ok := co.cache.Story(id); !ok {
			return Result{}, fmt.Errorf("story %s: %w", id, ErrNotCached)
		}
	}
	for _, r := range co.cache.StoryRelationships() {
		if r.StoryIDA == from && r.StoryIDB == to && r.Relation == models.RelationContinuedBy {
			return Result{Skipped: true}, nil
		}
	}

	rel, err := co.api.CreateStoryRelationship(ctx, api.CreateStoryRelationshipReq{
		StoryIDA: from,
		StoryIDB: to,
		Relation: models.RelationContinuedBy,
	})
	if err != nil {
		return Result{}, err
	}
	if rel != nil {
		co.cache.PutStoryRelationship(*rel)
	} else {
		rels, err := co.api.GetStoryRelationships(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("reload story relationships: %w", err)
		}
		co.cache.SetStoryRelationships(rels)
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return Result{}, nil
}

func (co *Coordinator) DestroyStoryRelationship(ctx context.Context, id int) error {
	if err := co.api.DestroyStoryRelationshipByID(ctx, id); err != nil {
		return err
	}
	co.cache.RemoveStoryRelationship(id)
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return nil
}

func (co *Coordinator) validateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return required("comment", "text")
	}
	if cfg := co.cache.Config(); cfg != nil && exceeds(text, cfg.CommentMaxLen) {
		return tooLong("comment", "text", cfg.CommentMaxLen)
	}
	return nil
}

// CreateComment posts a comment on a task. Comments are not cached; the
// caller owns the list it shows.
func (co *Coordinator) CreateComment(ctx context.Context, taskID, text string) (*models.TaskComment, error) {
	if taskID == "" {
		return nil, required("comment", "task_id")
	}
	if err := co.validateComment(text); err != nil {
		co.log.Warn("comment create rejected", "task_id", taskID, "error", err)
		return nil, err
	}
	comment, err := co.api.CreateComment(ctx, taskID, text)
	if err != nil {
		return nil, err
	}
	co.bus.Publish(broadcast.Message{Type: broadcast.CommentMutated, TaskID: taskID})
	return comment, nil
}

// UpdateComment replaces the text of comment and returns the edited copy
func (co *Coordinator) UpdateComment(ctx context.Context, comment models.TaskComment, text string) (models.TaskComment, Result, error) {
	if comment.Text == text {
		return comment, Result{Skipped: true}, nil
	}
	if err := co.validateComment(text); err != nil {
		co.log.Warn("comment update rejected", "comment_id", comment.ID, "error", err)
		return comment, Result{}, err
	}
	if err := co.api.UpdateComment(ctx, comment.ID, text); err != nil {
		return comment, Result{}, err
	}
	comment.Text = text
	comment.Edited = true
	comment.UpdatedAt = co.now().UTC()
	co.bus.Publish(broadcast.Message{Type: broadcast.CommentMutated, TaskID: comment.TaskID})
	return comment, Result{}, nil
}
