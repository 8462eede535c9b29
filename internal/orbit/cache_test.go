package orbit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadLatestAndPrune(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	c := NewCache(dir, 2)
	for i, body := range []string{"first", "second", "third"} {
		require.NoError(t, c.Write([]byte(body), time.Unix(int64(100*(i+1)), 0)))
	}

	data, ts, err := c.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, "third", string(data))
	assert.Equal(t, int64(300), ts.Unix())

	matches, err := filepath.Glob(filepath.Join(dir, "elements_*.tle"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestCacheEmpty(t *testing.T) {
	_, _, err := NewCache(t.TempDir(), 0).LoadLatest()
	assert.ErrorIs(t, err, ErrNoCachedElements)

	_, _, err = NewCache(filepath.Join(t.TempDir(), "missing"), 3).LoadLatest()
	assert.ErrorIs(t, err, ErrNoCachedElements)
}

func TestCacheCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, NewCache(dir, 1).Write([]byte(issLine1), time.Unix(1, 0)))

	data, _, err := NewCache(dir, 1).LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, issLine1, string(data))
}
