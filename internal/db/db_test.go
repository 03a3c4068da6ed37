package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSettingsRoundTrip(t *testing.T) {
	d := openTestDB(t)

	v, err := d.GetSetting("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, d.SetSetting("k", "one"))
	require.NoError(t, d.SetSetting("k", "two"))
	v, err = d.GetSetting("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestNewCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "todosky")
	d, err := New(dir)
	require.NoError(t, err)
	defer d.Close()
	assert.FileExists(t, filepath.Join(dir, "todosky.db"))
}

func TestPrefsSelectedTags(t *testing.T) {
	p := NewPrefs(openTestDB(t))

	ids, saved, err := p.SelectedTagIDs()
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Nil(t, ids)

	require.NoError(t, p.SetSelectedTagIDs([]string{"a", "b"}))
	ids, saved, err = p.SelectedTagIDs()
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, p.SetSelectedTagIDs(nil))
	ids, saved, err = p.SelectedTagIDs()
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Empty(t, ids)
}

func TestPrefsSprint(t *testing.T) {
	p := NewPrefs(openTestDB(t))
	require.NoError(t, p.SetViewingSprintID("p1"))
	id, err := p.ViewingSprintID()
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestCopyMode(t *testing.T) {
	p := NewPrefs(openTestDB(t))
	assert.Equal(t, CopySqid, p.CopyMode())

	require.NoError(t, p.SetCopyMode(CopyTics))
	assert.Equal(t, CopyTics, p.CopyMode())

	d := openTestDB(t)
	require.NoError(t, d.SetSetting(KeyCopyMode, "bogus"))
	assert.Equal(t, CopySqid, NewPrefs(d).CopyMode())

	tests := []struct {
		mode CopyMode
		want string
		next CopyMode
	}{
		{CopySqid, "task:Ab3", CopyPath},
		{CopyPath, "/task/Ab3", CopyTics},
		{CopyTics, "`/task/Ab3`", CopySqid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mode.Format("Ab3"))
		assert.Equal(t, tt.next, tt.mode.Next())
	}
}
