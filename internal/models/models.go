package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state shared by tasks and stories
type Status string

const (
	StatusBacklog        Status = "BACKLOG"
	StatusDoing          Status = "DOING"
	StatusDone           Status = "DONE"
	StatusDeprioritized  Status = "DEPRIORITIZED"
	StatusArchive        Status = "ARCHIVE"
	StatusDuplicate      Status = "DUPLICATE"
	StatusDeadlinePassed Status = "DEADLINE PASSED"
)

var statuses = []Status{
	StatusBacklog,
	StatusDoing,
	StatusDone,
	StatusDeprioritized,
	StatusArchive,
	StatusDuplicate,
	StatusDeadlinePassed,
}

// Statuses returns every status in declared order
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is part of the status enumeration
func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// RelationContinuedBy links story A to story B when A continues into B
// in a later sprint.
const RelationContinuedBy = "CONTINUED_BY"

// Config holds the server-supplied limits, read once per page load
type Config struct {
	ServerName            string `json:"server_name"`
	SprintDurationSeconds int    `json:"sprint_duration_seconds"`
	SprintTitleMaxLen     int    `json:"sprint_title_max_len"`
	StoryTitleMaxLen      int    `json:"story_title_max_len"`
	StoryDescMaxLen       int    `json:"story_desc_max_len"`
	TaskTitleMaxLen       int    `json:"task_title_max_len"`
	TaskDescMaxLen        int    `json:"task_desc_max_len"`
	TagTitleMaxLen        int    `json:"tag_title_max_len"`
	TagDescMaxLen         int    `json:"tag_desc_max_len"`
	CommentMaxLen         int    `json:"comment_max_len"`
}

// SessionStatus is returned by the session check endpoint
type SessionStatus struct {
	TimeRemainingSeconds int `json:"session_time_remaining_seconds"`
}

// Task is the smallest trackable unit of work
type Task struct {
	ID          string    `json:"id"`
	Sqid        string    `json:"sqid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	StoryID     *string   `json:"story_id"` // nil when the task is unattached
	BulkTask    bool      `json:"bulk_task"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Edited      bool      `json:"edited"`
}

// HasStory reports whether the task is attached to a story
func (t Task) HasStory() bool {
	return t.StoryID != nil
}

// Story groups tasks and belongs to exactly one sprint at a time
type Story struct {
	ID          string    `json:"id"`
	Sqid        string    `json:"sqid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	SprintID    string    `json:"sprint_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Edited      bool      `json:"edited"`
}

// IsActive reports whether the story should appear on a sprintboard
func (s Story) IsActive() bool {
	return s.Status != StatusArchive && s.Status != StatusDuplicate
}

// Sprint is a date-bounded container of stories
type Sprint struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Edited    bool      `json:"edited"`
}

// Start parses the sprint start date
func (s Sprint) Start() (time.Time, error) {
	return ParseDate(s.StartDate)
}

// End parses the sprint end date
func (s Sprint) End() (time.Time, error) {
	return ParseDate(s.EndDate)
}

// String renders the sprint as "title (m.d - m.d)"
func (s Sprint) String() string {
	return fmt.Sprintf("%s (%s - %s)", s.Title, compactDate(s.StartDate), compactDate(s.EndDate))
}

func compactDate(raw string) string {
	d, err := ParseDate(raw)
	if err != nil {
		return "0.0"
	}
	return fmt.Sprintf("%d.%d", int(d.Month()), d.Day())
}

// ParseDate accepts the date formats the server has been seen to emit
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Tag labels stories
type Tag struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsParent    bool      `json:"is_parent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Edited      bool      `json:"edited"`
}

// TagAssignment joins a tag to a story
type TagAssignment struct {
	ID        int       `json:"id"`
	TagID     string    `json:"tag_id"`
	StoryID   string    `json:"story_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskComment is a markdown comment on a task
type TaskComment struct {
	ID        int       `json:"id"`
	TaskID    string    `json:"task_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Edited    bool      `json:"edited"`
}

// StoryRelationship links two stories, e.g. across sprints
type StoryRelationship struct {
	ID        int       `json:"id"`
	StoryIDA  string    `json:"story_id_a"`
	StoryIDB  string    `json:"story_id_b"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"created_at"`
}

// ShortID abbreviates a UUID to its first group. Ids that are not UUIDs
// are returned unchanged.
func ShortID(id string) string {
	if _, err := uuid.Parse(id); err != nil {
		return id
	}
	return strings.SplitN(id, "-", 2)[0] + "..."
}
