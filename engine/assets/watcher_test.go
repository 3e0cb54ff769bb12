package assets

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventually polls until want shows up, collecting everything seen on the way.
func eventually(t *testing.T, poll func() []string, want string) []string {
	t.Helper()
	var seen []string
	require.Eventually(t, func() bool {
		seen = append(seen, poll()...)
		return slices.Contains(seen, want)
	}, 5*time.Second, 10*time.Millisecond, "never saw %s", want)
	return seen
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sprite.frag")
	require.NoError(t, os.WriteFile(file, []byte("void main() {}\n"), 0o644))

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	assert.Empty(t, w.Poll())

	require.NoError(t, os.WriteFile(file, []byte("void main() { }\n"), 0o644))
	eventually(t, w.Poll, "sprite.frag")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	sub := filepath.Join(dir, "common")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "light.glsl"), nil, 0o644))
	eventually(t, w.Poll, "common/light.glsl")
}

func TestWatcherPollDrains(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.markChanged(filepath.Join(dir, "b.glsl"))
	w.markChanged(filepath.Join(dir, "a.glsl"))
	w.markChanged(filepath.Join(dir, "a.glsl"))
	assert.Equal(t, []string{"a.glsl", "b.glsl"}, w.Poll())
	assert.Nil(t, w.Poll())
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrWatcherClosed)
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
