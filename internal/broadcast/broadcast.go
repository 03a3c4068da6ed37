// Package broadcast carries "something changed" hints between running
// todosky processes so each can refetch what it shows. Delivery is best
// effort and unordered.
package broadcast

import "sync"

// Type identifies what kind of entity changed
type Type string

const (
	TaskMutated    Type = "task-mutated"
	CommentMutated Type = "comment-mutated"
)

// Message is one change notification
type Message struct {
	Type   Type   `json:"type"`
	TaskID string `json:"taskId"`
	Origin string `json:"origin,omitempty"`
}

// Publisher sends messages. Implementations never fail the caller.
type Publisher interface {
	Publish(msg Message)
}

// Subscriber registers handlers. The returned func removes the handler.
type Subscriber interface {
	Subscribe(fn func(Message)) (unsubscribe func())
}

// Bus is a Publisher that can also be subscribed to
type Bus interface {
	Publisher
	Subscriber
}

type subscription struct {
	id int
	fn func(Message)
}

// Local is an in-process bus. Handlers run synchronously on the
// publishing goroutine.
type Local struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Subscribe(fn func(Message)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *Local) Publish(msg Message) {
	l.mu.RLock()
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	for _, s := range subs {
		s.fn(msg)
	}
}

// Discard drops every message
type Discard struct{}

func (Discard) Publish(Message) {}

func (Discard) Subscribe(func(Message)) func() { return func() {} }
