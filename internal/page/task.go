package page

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/cache"
	"github.com/tgienger/todosky/internal/models"
	"github.com/tgienger/todosky/internal/mutation"
)

// TaskRef strips the optional "task:" or "/task/" prefix from a
// reference so an id or sqid remains.
func TaskRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.Trim(ref, "`")
	for _, prefix := range []string{"task:", "/task/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

// TaskPage is the controller of the task detail screen
type TaskPage struct {
	Cache     *cache.Cache
	Mutations *mutation.Coordinator

	client Client
	log    *slog.Logger
	ref    string

	mu       sync.Mutex
	taskID   string
	comments []models.TaskComment
	errs     []error
}

// NewTaskPage prepares a task screen for ref, which is an id, a sqid or
// a copied task reference.
func NewTaskPage(client Client, bus broadcast.Publisher, log *slog.Logger, ref string) *TaskPage {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := cache.New()
	return &TaskPage{
		Cache:     c,
		Mutations: mutation.New(client, c, bus, log),
		client:    client,
		log:       log,
		ref:       TaskRef(ref),
	}
}

// Load resolves the task and fetches what its screen needs. The task is
// fetched alongside the lists; comments follow once the task id is known.
func (p *TaskPage) Load(ctx context.Context) Report {
	rep := LoadAll(ctx, p.log,
		Fetch{Name: "task", Run: p.loadTask},
		Fetch{Name: "config", Run: func(ctx context.Context) error {
			cfg, err := p.client.GetConfig(ctx)
			if err != nil {
				return err
			}
			p.Cache.SetConfig(cfg)
			return nil
		}},
		fetchInto("stories", p.client.GetStories, p.Cache.SetStories),
		fetchInto("sprints", p.client.GetSprints, p.Cache.SetSprints),
		fetchInto("tags", p.client.GetTags, p.Cache.SetTags),
		fetchInto("tag_assignments", p.client.GetTagAssignments, p.Cache.SetTagAssignments),
	)
	if p.id() != "" {
		rep = rep.Merge(LoadAll(ctx, p.log, Fetch{Name: "comments", Run: p.loadComments}))
	}
	p.mu.Lock()
	p.errs = rep.Errors
	p.mu.Unlock()
	return rep
}

func (p *TaskPage) id() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskID
}

func (p *TaskPage) loadTask(ctx context.Context) error {
	id := p.id()
	if id == "" {
		id = p.ref
	}
	task, err := p.client.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: empty response", id)
	}
	p.Cache.PutTask(*task)
	p.mu.Lock()
	p.taskID = task.ID
	p.mu.Unlock()
	return nil
}

func (p *TaskPage) loadComments(ctx context.Context) error {
	comments, err := p.client.GetCommentsByTaskID(ctx, p.id())
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.comments = comments
	p.mu.Unlock()
	return nil
}

// Refresh reloads the task and its comments when msg concerns it. It
// reports whether anything was reloaded.
func (p *TaskPage) Refresh(ctx context.Context, msg broadcast.Message) (bool, error) {
	id := p.id()
	if id == "" || (msg.TaskID != "" && msg.TaskID != id) {
		return false, nil
	}
	var fetches []Fetch
	if msg.Type == broadcast.TaskMutated {
		fetches = append(fetches,
			Fetch{Name: "task", Run: p.loadTask},
			fetchInto("stories", p.client.GetStories, p.Cache.SetStories),
		)
	}
	fetches = append(fetches, Fetch{Name: "comments", Run: p.loadComments})
	rep := LoadAll(ctx, p.log, fetches...)
	return true, rep.Err()
}

// Task returns the loaded task
func (p *TaskPage) Task() (models.Task, bool) {
	id := p.id()
	if id == "" {
		return models.Task{}, false
	}
	return p.Cache.Task(id)
}

// Story returns the task's parent story and its sprint when both are loaded
func (p *TaskPage) Story() (*models.Story, *models.Sprint) {
	t, ok := p.Task()
	if !ok || t.StoryID == nil {
		return nil, nil
	}
	s, ok := p.Cache.Story(*t.StoryID)
	if !ok {
		return nil, nil
	}
	if sp, ok := p.Cache.Sprint(s.SprintID); ok {
		return &s, &sp
	}
	return &s, nil
}

// Comments returns the loaded comments, oldest first
func (p *TaskPage) Comments() []models.TaskComment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TaskComment, len(p.comments))
	copy(out, p.comments)
	return out
}

func (p *TaskPage) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}

func (p *TaskPage) SetStatus(ctx context.Context, status models.Status) (mutation.Result, error) {
	return p.Mutations.MoveTask(ctx, p.id(), status)
}

func (p *TaskPage) Rename(ctx context.Context, title string) (mutation.Result, error) {
	return p.Mutations.UpdateTask(ctx, p.id(), mutation.TaskChange{Title: &title})
}

func (p *TaskPage) Describe(ctx context.Context, description string) (mutation.Result, error) {
	return p.Mutations.UpdateTask(ctx, p.id(), mutation.TaskChange{Description: &description})
}

// SetStory moves the task to storyID, or detaches it when storyID is empty
func (p *TaskPage) SetStory(ctx context.Context, storyID string) (mutation.Result, error) {
	if storyID == "" {
		return p.Mutations.UpdateTask(ctx, p.id(), mutation.TaskChange{ClearStory: true})
	}
	return p.Mutations.UpdateTask(ctx, p.id(), mutation.TaskChange{StoryID: &storyID})
}

// AddComment posts a comment and appends it to the list
func (p *TaskPage) AddComment(ctx context.Context, text string) error {
	c, err := p.Mutations.CreateComment(ctx, p.id(), text)
	if err != nil {
		return err
	}
	if c != nil {
		p.mu.Lock()
		p.comments = append(p.comments, *c)
		p.mu.Unlock()
		return nil
	}
	return p.loadComments(ctx)
}

// EditComment replaces the text of the comment with id
func (p *TaskPage) EditComment(ctx context.Context, id int, text string) (mutation.Result, error) {
	for _, c := range p.Comments() {
		if c.ID != id {
			continue
		}
		edited, res, err := p.Mutations.UpdateComment(ctx, c, text)
		if err != nil {
			return res, err
		}
		p.mu.Lock()
		for i := range p.comments {
			if p.comments[i].ID == id {
				p.comments[i] = edited
			}
		}
		p.mu.Unlock()
		return res, nil
	}
	return mutation.Result{}, fmt.Errorf("comment %d: %w", id, mutation.ErrNotCached)
}
