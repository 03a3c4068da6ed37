package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/todosky/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c, srv
}

func TestGetTasksDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/get_tasks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `[{"id":"t1","sqid":"abc","title":"one","status":"DOING","story_id":null},
			{"id":"t2","sqid":"def","title":"two","status":"DONE","story_id":"s1"}]`)
	})

	tasks, err := c.GetTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Nil(t, tasks[0].StoryID)
	assert.Equal(t, models.StatusDone, tasks[1].Status)
	require.NotNil(t, tasks[1].StoryID)
	assert.Equal(t, "s1", *tasks[1].StoryID)
}

func TestGetManyEmptyBody(t *testing.T) {
	for _, body := range []string{"", "null"} {
		t.Run("body="+body, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			stories, err := c.GetStories(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, stories)
			assert.Empty(t, stories)
		})
	}
}

func TestHTTPErrorCarriesStatusAndURL(t *testing.T) {
	var reported []error
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"nope"}`)
	}, WithReporter(ReporterFunc(func(err error) { reported = append(reported, err) })))

	_, err := c.GetTaskByID(context.Background(), "t1")
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Equal(t, srv.URL+"/api/get_task?id=t1", herr.URL)
	assert.Equal(t, "bad res code (401) from: "+srv.URL+"/api/get_task?id=t1", err.Error())

	require.Len(t, reported, 1)
	assert.Same(t, herr, reported[0])
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := NewClient(base)
	require.NoError(t, err)

	_, err = c.GetConfig(context.Background())
	require.Error(t, err)
	var uerr *url.Error
	assert.True(t, errors.As(err, &uerr))
	var herr *HTTPError
	assert.False(t, errors.As(err, &herr))
}

func TestNonJSONBodyIsNoData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "created")
	})

	task, err := c.CreateTask(context.Background(), CreateTaskReq{Title: "x"})
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestCreateTaskSendsJSON(t *testing.T) {
	story := "s1"
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/create_task", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "write tests", body["title"])
		assert.Equal(t, "s1", body["story_id"])
		assert.Equal(t, true, body["bulk_task"])
		_ = json.NewEncoder(w).Encode(models.Task{ID: "t9", Title: "write tests"})
	})

	task, err := c.CreateTask(context.Background(), CreateTaskReq{
		Title:    "write tests",
		StoryID:  &story,
		BulkTask: true,
	})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "t9", task.ID)
}

func TestUpdateTaskUsesPut(t *testing.T) {
	var got PutTaskReq
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/put_task", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	err := c.UpdateTask(context.Background(), PutTaskReq{ID: "t1", Status: models.StatusDoing, Title: "a"})
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, models.StatusDoing, got.Status)
	assert.Nil(t, got.StoryID)
}

func TestUpdateCommentBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/put_comment", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["id"])
		assert.Equal(t, "edited", body["text"])
	})

	require.NoError(t, c.UpdateComment(context.Background(), 7, "edited"))
}

func TestGetWithoutBodyHasNoContentType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"session_time_remaining_seconds": 3600}`)
	})

	status, err := c.CheckSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3600, status.TimeRemainingSeconds)
}

func TestCheckSessionWithoutJSON(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "html": "<html>oops</html>"} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			status, err := c.CheckSession(context.Background())
			require.NoError(t, err)
			assert.Nil(t, status)
		})
	}
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			require.NoError(t, r.ParseForm())
			if r.PostForm.Get("pass") != "hunter2" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok", Path: "/"})
		case "/api/check_session":
			if ck, err := r.Cookie("session"); err != nil || ck.Value != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"session_time_remaining_seconds": 60}`)
		}
	})

	ctx := context.Background()
	_, err := c.CheckSession(ctx)
	require.Error(t, err)

	err = c.Login(ctx, "wrong")
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.StatusCode)

	require.NoError(t, c.Login(ctx, "hunter2"))
	status, err := c.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, status.TimeRemainingSeconds)
}

func TestGetCommentsQueriesByTask(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t1", r.URL.Query().Get("id"))
		_, _ = io.WriteString(w, `[{"id":1,"task_id":"t1","text":"hi"}]`)
	})

	comments, err := c.GetCommentsByTaskID(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, 1, comments[0].ID)
}
