package page

import (
	"context"

	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/mutation"
)

// Client is everything a screen reads from or writes to the server.
// *api.Client satisfies it.
type Client interface {
	mutation.API

	CheckSession(ctx context.Context) (*models.SessionStatus, error)
	GetConfig(ctx context.Context) (*models.Config, error)
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetStories(ctx context.Context) ([]models.Story, error)
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetCommentsByTaskID(ctx context.Context, taskID string) ([]models.TaskComment, error)
}

// Prefs is the preference storage a sprintboard restores its filter from
type Prefs interface {
	ViewingSprintID() (string, error)
	SetViewingSprintID(id string) error
	SelectedTagIDs() ([]string, bool, error)
	SetSelectedTagIDs(ids []string) error
}
