package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultTTL is how long a message file is kept before publishers prune it
const DefaultTTL = time.Minute

// Channel is a cross-process bus backed by a shared directory. Each
// published message becomes a JSON file; every process watching the
// directory delivers files written by other processes to its local
// subscribers.
type Channel struct {
	dir    string
	origin string
	ttl    time.Duration
	log    *slog.Logger
	local  *Local

	mu      sync.Mutex
	seen    map[string]time.Time
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewChannel prepares a channel rooted at dir, creating it if needed
func NewChannel(dir string, log *slog.Logger) (*Channel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create broadcast dir: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Channel{
		dir:    dir,
		origin: uuid.NewString(),
		ttl:    DefaultTTL,
		log:    log,
		local:  NewLocal(),
		seen:   map[string]time.Time{},
	}, nil
}

// Origin is the id stamped on messages from this process
func (c *Channel) Origin() string { return c.origin }

func (c *Channel) Subscribe(fn func(Message)) func() {
	return c.local.Subscribe(fn)
}

// Start watches the directory until ctx is done or Close is called
func (c *Channel) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	c.mu.Lock()
	c.watcher = w
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					c.receive(event.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn("broadcast watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops watching and waits for the watch loop to exit
func (c *Channel) Close() error {
	c.mu.Lock()
	w, done := c.watcher, c.done
	c.watcher = nil
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}

// Publish writes msg for other processes. Errors are logged.
func (c *Channel) Publish(msg Message) {
	msg.Origin = c.origin
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Warn("broadcast encode failed", "error", err)
		return
	}

	name := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), uuid.NewString())
	tmp, err := os.CreateTemp(c.dir, ".msg-*.tmp")
	if err != nil {
		c.log.Warn("broadcast write failed", "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		c.log.Warn("broadcast write failed", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		c.log.Warn("broadcast write failed", "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		c.log.Warn("broadcast rename failed", "error", err)
		return
	}
	c.log.Debug("broadcast published", "type", msg.Type, "task_id", msg.TaskID)

	c.prune(time.Now())
}

func (c *Channel) receive(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".json") {
		return
	}

	c.mu.Lock()
	if _, dup := c.seen[base]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[base] = time.Now()
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		// pruned by another process before we got to it
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn("broadcast message was not json", "file", base, "error", err)
		return
	}
	if msg.Origin == c.origin {
		return
	}
	c.local.Publish(msg)
}

// prune removes message files older than the ttl and forgets them
func (c *Channel) prune(now time.Time) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > c.ttl {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, at := range c.seen {
		if now.Sub(at) > 2*c.ttl {
			delete(c.seen, name)
		}
	}
}
