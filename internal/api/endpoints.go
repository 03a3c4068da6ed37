package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tgienger/todosky/internal/models"
)

// CreateTaskReq is the body of /api/create_task
type CreateTaskReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StoryID     *string `json:"story_id"`
	BulkTask    bool    `json:"bulk_task"`
}

// PutTaskReq is the body of /api/put_task. Every field is required.
type PutTaskReq struct {
	ID          string        `json:"id"`
	Status      models.Status `json:"status"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StoryID     *string       `json:"story_id"`
}

// CreateStoryReq is the body of /api/create_story
type CreateStoryReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SprintID    string `json:"sprint_id"`
}

// PutStoryReq is the body of /api/put_story. Every field is required.
type PutStoryReq struct {
	ID          string        `json:"id"`
	Status      models.Status `json:"status"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	SprintID    string        `json:"sprint_id"`
}

// CreateSprintReq is the body of /api/create_sprint
type CreateSprintReq struct {
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CreateTagReq is the body of /api/create_tag
type CreateTagReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type tagAssignmentReq struct {
	TagID   string `json:"tag_id"`
	StoryID string `json:"story_id"`
}

// CreateStoryRelationshipReq is the body of /api/create_story_relationship
type CreateStoryRelationshipReq struct {
	StoryIDA string `json:"story_id_a"`
	StoryIDB string `json:"story_id_b"`
	Relation string `json:"relation"`
}

type idReq struct {
	ID int `json:"id"`
}

type createCommentReq struct {
	Text   string `json:"text"`
	TaskID string `json:"task_id"`
}

type putCommentReq struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Login exchanges the password for a session cookie kept in the client's
// cookie jar.
func (c *Client) Login(ctx context.Context, password string) error {
	form := url.Values{"pass": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+routeLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.BaseURL+"/login")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if c.Reporter != nil {
			c.Reporter.Report(err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{StatusCode: resp.StatusCode, URL: c.BaseURL + routeLogin}
		if c.Reporter != nil {
			c.Reporter.Report(herr)
		}
		return herr
	}
	return nil
}

// CheckSession returns the remaining session time. A nil status with a
// nil error means the server answered without usable data.
func (c *Client) CheckSession(ctx context.Context) (*models.SessionStatus, error) {
	var out models.SessionStatus
	decoded, err := c.request(ctx, http.MethodGet, routeCheckSession, nil, nil, &out)
	if err != nil {
		return nil, err
	}
	if !decoded {
		return nil, nil
	}
	return &out, nil
}

// GetConfig returns the server limits
func (c *Client) GetConfig(ctx context.Context) (*models.Config, error) {
	var out models.Config
	if _, err := c.request(ctx, http.MethodGet, routeGetConfig, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTasks(ctx context.Context) ([]models.Task, error) {
	return getMany[models.Task](ctx, c, routeGetTasks)
}

func (c *Client) GetStories(ctx context.Context) ([]models.Story, error) {
	return getMany[models.Story](ctx, c, routeGetStories)
}

func (c *Client) GetSprints(ctx context.Context) ([]models.Sprint, error) {
	return getMany[models.Sprint](ctx, c, routeGetSprints)
}

func (c *Client) GetTags(ctx context.Context) ([]models.Tag, error) {
	return getMany[models.Tag](ctx, c, routeGetTags)
}

func (c *Client) GetTagAssignments(ctx context.Context) ([]models.TagAssignment, error) {
	return getMany[models.TagAssignment](ctx, c, routeGetTagAssignments)
}

func (c *Client) GetStoryRelationships(ctx context.Context) ([]models.StoryRelationship, error) {
	return getMany[models.StoryRelationship](ctx, c, routeGetStoryRelationships)
}

// GetTaskByID fetches one task. The server also accepts a sqid here.
func (c *Client) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	return getOne[models.Task](ctx, c, routeGetTask, id)
}

// GetStoryByID fetches one story. The server also accepts a sqid here.
func (c *Client) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	return getOne[models.Story](ctx, c, routeGetStory, id)
}

// GetCommentsByTaskID lists comments on a task, oldest first
func (c *Client) GetCommentsByTaskID(ctx context.Context, taskID string) ([]models.TaskComment, error) {
	var out []models.TaskComment
	if _, err := c.request(ctx, http.MethodGet, routeGetComments, url.Values{"id": {taskID}}, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.TaskComment{}
	}
	return out, nil
}

// CreateTask creates a task. The result is nil when the server returns
// an empty body.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskReq) (*models.Task, error) {
	return send[models.Task](ctx, c, http.MethodPost, routeCreateTask, req)
}

// UpdateTask replaces the mutable fields of a task
func (c *Client) UpdateTask(ctx context.Context, req PutTaskReq) error {
	_, err := c.request(ctx, http.MethodPut, routePutTask, nil, req, nil)
	return err
}

func (c *Client) CreateStory(ctx context.Context, req CreateStoryReq) (*models.Story, error) {
	return send[models.Story](ctx, c, http.MethodPost, routeCreateStory, req)
}

// UpdateStory replaces the mutable fields of a story
func (c *Client) UpdateStory(ctx context.Context, req PutStoryReq) error {
	_, err := c.request(ctx, http.MethodPut, routePutStory, nil, req, nil)
	return err
}

func (c *Client) CreateSprint(ctx context.Context, req CreateSprintReq) (*models.Sprint, error) {
	return send[models.Sprint](ctx, c, http.MethodPost, routeCreateSprint, req)
}

func (c *Client) CreateTag(ctx context.Context, req CreateTagReq) (*models.Tag, error) {
	return send[models.Tag](ctx, c, http.MethodPost, routeCreateTag, req)
}

func (c *Client) CreateTagAssignment(ctx context.Context, tagID, storyID string) (*models.TagAssignment, error) {
	return send[models.TagAssignment](ctx, c, http.MethodPost, routeCreateTagAssignment, tagAssignmentReq{TagID: tagID, StoryID: storyID})
}

func (c *Client) DestroyTagAssignment(ctx context.Context, tagID, storyID string) error {
	_, err := c.request(ctx, http.MethodPost, routeDestroyTagAssignment, nil, tagAssignmentReq{TagID: tagID, StoryID: storyID}, nil)
	return err
}

func (c *Client) CreateStoryRelationship(ctx context.Context, req CreateStoryRelationshipReq) (*models.StoryRelationship, error) {
	return send[models.StoryRelationship](ctx, c, http.MethodPost, routeCreateStoryRelationship, req)
}

func (c *Client) DestroyStoryRelationshipByID(ctx context.Context, id int) error {
	_, err := c.request(ctx, http.MethodPost, routeDestroyStoryRelationship, nil, idReq{ID: id}, nil)
	return err
}

func (c *Client) CreateComment(ctx context.Context, taskID, text string) (*models.TaskComment, error) {
	return send[models.TaskComment](ctx, c, http.MethodPost, routeCreateComment, createCommentReq{Text: text, TaskID: taskID})
}

// UpdateComment replaces the text of a comment
func (c *Client) UpdateComment(ctx context.Context, id int, text string) error {
	_, err := c.request(ctx, http.MethodPut, routePutComment, nil, putCommentReq{ID: id, Text: text}, nil)
	return err
}
