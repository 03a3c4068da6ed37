package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request unless overridden with WithTimeout
const DefaultTimeout = 30 * time.Second

const (
	routeCheckSession             = "/api/check_session"
	routeLogin                    = "/api/login"
	routeGetConfig                = "/api/get_config"
	routeGetTasks                 = "/api/get_tasks"
	routeGetTask                  = "/api/get_task"
	routeCreateTask               = "/api/create_task"
	routePutTask                  = "/api/put_task"
	routeGetStories               = "/api/get_stories"
	routeGetStory                 = "/api/get_story"
	routeCreateStory              = "/api/create_story"
	routePutStory                 = "/api/put_story"
	routeGetSprints               = "/api/get_sprints"
	routeCreateSprint             = "/api/create_sprint"
	routeGetTags                  = "/api/get_tags"
	routeCreateTag                = "/api/create_tag"
	routeGetTagAssignments        = "/api/get_tag_assignments"
	routeCreateTagAssignment      = "/api/create_tag_assignment"
	routeDestroyTagAssignment     = "/api/destroy_tag_assignment"
	routeGetStoryRelationships    = "/api/get_story_relationships"
	routeCreateStoryRelationship  = "/api/create_story_relationship"
	routeDestroyStoryRelationship = "/api/destroy_story_relationship_by_id"
	routeGetComments              = "/api/get_comments_by_task_id"
	routeCreateComment            = "/api/create_comment"
	routePutComment               = "/api/put_comment"
)

// HTTPError is returned for any non-2xx response. The body is not read.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bad res code (%d) from: %s", e.StatusCode, e.URL)
}

// Reporter receives every request failure before it is returned to the
// caller. It lets a UI surface errors without the client knowing how.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// Client talks to the todosky REST API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Reporter   Reporter

	log *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithReporter installs an error reporter
func WithReporter(r Reporter) Option {
	return func(c *Client) { c.Reporter = r }
}

// WithLogger sets the logger used for decode warnings and request tracing
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the server at baseURL. The client keeps
// cookies so a session obtained through Login is reused.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request performs one API call. A non-nil body is sent as JSON. When out
// is non-nil the response body is decoded into it; an empty or non-JSON
// body is logged and leaves out untouched.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) (decoded bool, err error) {
	defer func() {
		if err != nil && c.Reporter != nil {
			c.Reporter.Report(err)
		}
	}()

	fullURL := c.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, &HTTPError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.log.Warn("response was not json", "path", path, "error", err)
		return false, nil
	}
	return true, nil
}

// getMany decodes a JSON array, normalizing null and empty bodies to an
// empty slice.
func getMany[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if _, err := c.request(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// getOne fetches a single entity by id
func getOne[T any](ctx context.Context, c *Client, path, id string) (*T, error) {
	out := new(T)
	decoded, err := c.request(ctx, http.MethodGet, path, url.Values{"id": {id}}, nil, out)
	if err != nil {
		return nil, err
	}
	if !decoded {
		return nil, nil
	}
	return out, nil
}

// send posts or puts body and decodes the created resource when the
// server returns one. A nil result with a nil error means the endpoint
// answered with an empty body.
func send[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	out := new(T)
	decoded, err := c.request(ctx, method, path, nil, body, out)
	if err != nil {
		return nil, err
	}
	if !decoded {
		return nil, nil
	}
	return out, nil
}
