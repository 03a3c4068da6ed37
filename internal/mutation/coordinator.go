// Package mutation applies edits to the server and keeps the local cache in
// step with what was sent.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tgienger/todosky/internal/api"
	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/cache"
	"github.com/tgienger/todosky/internal/models"
)

// API is the subset of the REST client the coordinator drives
type API interface {
	UpdateTask(ctx context.Context, req api.PutTaskReq) error
	UpdateStory(ctx context.Context, req api.PutStoryReq) error
	CreateTask(ctx context.Context, req api.CreateTaskReq) (*models.Task, error)
	CreateStory(ctx context.Context, req api.CreateStoryReq) (*models.Story, error)
	CreateSprint(ctx context.Context, req api.CreateSprintReq) (*models.Sprint, error)
	CreateTag(ctx context.Context, req api.CreateTagReq) (*models.Tag, error)
	CreateTagAssignment(ctx context.Context, tagID, storyID string) (*models.TagAssignment, error)
	DestroyTagAssignment(ctx context.Context, tagID, storyID string) error
	CreateStoryRelationship(ctx context.Context, req api.CreateStoryRelationshipReq) (*models.StoryRelationship, error)
	DestroyStoryRelationshipByID(ctx context.Context, id int) error
	CreateComment(ctx context.Context, taskID, text string) (*models.TaskComment, error)
	UpdateComment(ctx context.Context, id int, text string) error

	GetSprints(ctx context.Context) ([]models.Sprint, error)
	GetTags(ctx context.Context) ([]models.Tag, error)
	GetTagAssignments(ctx context.Context) ([]models.TagAssignment, error)
	GetStoryRelationships(ctx context.Context) ([]models.StoryRelationship, error)
}

// Result describes what an update did
type Result struct {
	// Skipped is set when the change matched the cached record and no
	// request was sent.
	Skipped bool
}

// Coordinator is the only path through which a screen changes server
// data. It owns no state beyond what it is given.
type Coordinator struct {
	api   API
	cache *cache.Cache
	bus   broadcast.Publisher
	log   *slog.Logger
	now   func() time.Time
}

func New(client API, c *cache.Cache, bus broadcast.Publisher, log *slog.Logger) *Coordinator {
	if bus == nil {
		bus = broadcast.Discard{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{api: client, cache: c, bus: bus, log: log, now: time.Now}
}

// TaskChange lists the task fields to change. Nil fields keep their cached
// value. ClearStory detaches the task from its story.
type TaskChange struct {
	Status      *models.Status
	Title       *string
	Description *string
	StoryID     *string
	ClearStory  bool
}

// UpdateTask sends the change if it differs from the cached task
func (co *Coordinator) UpdateTask(ctx context.Context, id string, change TaskChange) (Result, error) {
	current, ok := co.cache.Task(id)
	if !ok {
		return Result{}, fmt.Errorf("task %s: %w", id, ErrNotCached)
	}

	next := current
	if change.Status != nil {
		next.Status = *change.Status
	}
	if change.Title != nil {
		next.Title = *change.Title
	}
	if change.Description != nil {
		next.Description = *change.Description
	}
	if change.ClearStory {
		next.StoryID = nil
	} else if change.StoryID != nil {
		sid := *change.StoryID
		next.StoryID = &sid
	}

	if sameTask(current, next) {
		return Result{Skipped: true}, nil
	}
	err := co.validateTask(next)
	if err == nil && change.StoryID != nil && !change.ClearStory {
		err = co.checkStoryExists("task", *change.StoryID)
	}
	if err != nil {
		co.log.Warn("task update rejected", "task_id", id, "error", err)
		return Result{}, err
	}

	err = co.api.UpdateTask(ctx, api.PutTaskReq{
		ID:          next.ID,
		Status:      next.Status,
		Title:       next.Title,
		Description: next.Description,
		StoryID:     next.StoryID,
	})
	if err != nil {
		return Result{}, err
	}

	next.UpdatedAt = co.now().UTC()
	next.Edited = true
	co.cache.PutTask(next)
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated, TaskID: id})
	return Result{}, nil
}

// MoveTask changes only the status of a task
func (co *Coordinator) MoveTask(ctx context.Context, id string, status models.Status) (Result, error) {
	return co.UpdateTask(ctx, id, TaskChange{Status: &status})
}

func sameTask(a, b models.Task) bool {
	if a.Status != b.Status || a.Title != b.Title || a.Description != b.Description {
		return false
	}
	switch {
	case a.StoryID == nil && b.StoryID == nil:
		return true
	case a.StoryID == nil || b.StoryID == nil:
		return false
	default:
		return *a.StoryID == *b.StoryID
	}
}

func (co *Coordinator) validateTask(t models.Task) error {
	const entity = "task"
	switch {
	case t.ID == "":
		return required(entity, "id")
	case strings.TrimSpace(t.Title) == "":
		return required(entity, "title")
	case t.Status == "":
		return required(entity, "status")
	case !t.Status.Valid():
		return &ValidationError{Entity: entity, Field: "status", Reason: fmt.Sprintf("has unknown value %q", t.Status)}
	}
	if cfg := co.cache.Config(); cfg != nil {
		if exceeds(t.Title, cfg.TaskTitleMaxLen) {
			return tooLong(entity, "title", cfg.TaskTitleMaxLen)
		}
		if exceeds(t.Description, cfg.TaskDescMaxLen) {
			return tooLong(entity, "description", cfg.TaskDescMaxLen)
		}
	}
	return nil
}

func (co *Coordinator) checkStoryExists(entity, storyID string) error {
	if _, ok := co.cache.Story(storyID); !ok {
		return &ValidationError{Entity: entity, Field: "story_id", Reason: "references an unknown story"}
	}
	return nil
}

// StoryChange lists the story fields to change. Nil fields keep their
// cached value.
type StoryChange struct {
	Status      *models.Status
	Title       *string
	Description *string
	SprintID    *string
}

// UpdateStory sends the change if it differs from the cached story. Moving
// a story to another sprint is a SprintID change.
func (co *Coordinator) UpdateStory(ctx context.Context, id string, change StoryChange) (Result, error) {
	current, ok := co.cache.Story(id)
	if !ok {
		return Result{}, fmt.Errorf("story %s: %w", id, ErrNotCached)
	}

	next := current
	if change.Status != nil {
		next.Status = *change.Status
	}
	if change.Title != nil {
		next.Title = *change.Title
	}
	if change.Description != nil {
		next.Description = *change.Description
	}
	if change.SprintID != nil {
		next.SprintID = *change.SprintID
	}

	if current.Status == next.Status && current.Title == next.Title &&
		current.Description == next.Description && current.SprintID == next.SprintID {
		return Result{Skipped: true}, nil
	}
	if err := co.validateStory(next); err != nil {
		co.log.Warn("story update rejected", "story_id", id, "error", err)
		return Result{}, err
	}

	err := co.api.UpdateStory(ctx, api.PutStoryReq{
		ID:          next.ID,
		Status:      next.Status,
		Title:       next.Title,
		Description: next.Description,
		SprintID:    next.SprintID,
	})
	if err != nil {
		return Result{}, err
	}

	next.UpdatedAt = co.now().UTC()
	next.Edited = true
	co.cache.PutStory(next)
	// story edits change which tasks are visible, so every listener refreshes
	co.bus.Publish(broadcast.Message{Type: broadcast.TaskMutated})
	return Result{}, nil
}

func (co *Coordinator) validateStory(s models.Story) error {
	const entity = "story"
	switch {
	case s.ID == "":
		return required(entity, "id")
	case strings.TrimSpace(s.Title) == "":
		return required(entity, "title")
	case s.Status == "":
		return required(entity, "status")
	case !s.Status.Valid():
		return &ValidationError{Entity: entity, Field: "status", Reason: fmt.Sprintf("has unknown value %q", s.Status)}
	case s.SprintID == "":
		return required(entity, "sprint_id")
	}
	if cfg := co.cache.Config(); cfg != nil {
		if exceeds(s.Title, cfg.StoryTitleMaxLen) {
			return tooLong(entity, "title", cfg.StoryTitleMaxLen)
		}
		if exceeds(s.Description, cfg.StoryDescMaxLen) {
			return tooLong(entity, "description", cfg.StoryDescMaxLen)
		}
	}
	return nil
}

// exceeds reports whether s is longer than max runes. A max of zero means
// the server sent no limit.
func exceeds(s string, max int) bool {
	return max > 0 && utf8.RuneCountInString(s) > max
}
