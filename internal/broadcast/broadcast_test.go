package broadcast

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) all() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func TestLocalPublishSubscribe(t *testing.T) {
	bus := NewLocal()
	var a, b recorder
	unsubA := bus.Subscribe(a.handle)
	bus.Subscribe(b.handle)

	bus.Publish(Message{Type: TaskMutated, TaskID: "t1"})
	unsubA()
	bus.Publish(Message{Type: CommentMutated, TaskID: "t2"})

	assert.Equal(t, []Message{{Type: TaskMutated, TaskID: "t1"}}, a.all())
	assert.Len(t, b.all(), 2)
	assert.Equal(t, CommentMutated, b.all()[1].Type)
}

func TestDiscard(t *testing.T) {
	var d Discard
	d.Publish(Message{Type: TaskMutated})
	d.Subscribe(func(Message) { t.Fatal("discard delivered a message") })()
}

func TestChannelDeliversToOtherProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender, err := NewChannel(dir, nil)
	require.NoError(t, err)
	receiver, err := NewChannel(dir, nil)
	require.NoError(t, err)
	require.NotEqual(t, sender.Origin(), receiver.Origin())

	var own, got recorder
	sender.Subscribe(own.handle)
	receiver.Subscribe(got.handle)

	require.NoError(t, sender.Start(ctx))
	require.NoError(t, receiver.Start(ctx))
	defer sender.Close()
	defer receiver.Close()

	sender.Publish(Message{Type: TaskMutated, TaskID: "t1"})

	assert.Eventually(t, func() bool { return len(got.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := got.all()[0]
	assert.Equal(t, TaskMutated, msg.Type)
	assert.Equal(t, "t1", msg.TaskID)
	assert.Equal(t, sender.Origin(), msg.Origin)

	// give the sender's own watcher time to see the file it wrote
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, own.all())
}

func TestChannelIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	ch, err := NewChannel(dir, nil)
	require.NoError(t, err)

	var got recorder
	ch.Subscribe(got.handle)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	ch.receive(filepath.Join(dir, "notes.txt"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	ch.receive(filepath.Join(dir, "bad.json"))

	assert.Empty(t, got.all())
}

func TestChannelPrunesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	ch, err := NewChannel(dir, nil)
	require.NoError(t, err)

	stale := filepath.Join(dir, "1-old.json")
	require.NoError(t, os.WriteFile(stale, []byte(`{"type":"task-mutated","taskId":"x"}`), 0o644))
	old := time.Now().Add(-2 * DefaultTTL)
	require.NoError(t, os.Chtimes(stale, old, old))

	ch.Publish(Message{Type: TaskMutated, TaskID: "t1"})

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
