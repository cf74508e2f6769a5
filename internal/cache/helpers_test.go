package cache

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ust-cache/ust-cache/internal/codec"
	"github.com/ust-cache/ust-cache/internal/fetch"
	"github.com/ust-cache/ust-cache/internal/logging"
)

// 1.json 的 metadata.timestamp
const fixtureTimestamp = 1591401600

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(unix int64) *testClock {
	return &testClock{now: time.Unix(unix, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0)
}

// sequentialIDs 从 start 开始依次分配文件 id，便于断言落盘路径。
func sequentialIDs(start int) func() string {
	var mu sync.Mutex
	next := start
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := strconv.Itoa(next)
		next++
		return id
	}
}

func openTestStore(t *testing.T, dir string, fetcher Fetcher, clock *testClock) *Store {
	t.Helper()
	store, err := New(Options{
		Dir:     dir,
		Fetcher: fetcher,
		Logger:  logging.NewDiscardLogger(),
		Now:     clock.Now,
		NewID:   sequentialIDs(99),
	})
	require.NoError(t, err)
	return store
}

func fileFetcher() Fetcher {
	return fetch.New(nil, "ust-cache/test")
}

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return abs
}

func fixtureURL(t *testing.T, name string) string {
	return fileURL(fixturePath(t, name))
}

func fileURL(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath(t, name))
	require.NoError(t, err)
	return data
}

// writeBz2Fixture 把 testdata/2.json 压缩后写入 dir/2.json.bz2 并返回其 file:// URL。
func writeBz2Fixture(t *testing.T, dir string) string {
	t.Helper()
	compressed, err := codec.NewBzip2().Compress(readFixture(t, "2.json"))
	require.NoError(t, err)
	path := filepath.Join(dir, "2.json.bz2")
	require.NoError(t, os.WriteFile(path, compressed, 0o644))
	return fileURL(path)
}

// writeIndex 在 dir 下写入只含一个条目的索引，并把 1.json 复制为对应产物文件。
func writeIndex(t *testing.T, dir, url, id string) string {
	t.Helper()
	path := filepath.Join(dir, id)
	require.NoError(t, os.WriteFile(path, readFixture(t, "1.json"), 0o644))

	entries := map[string]Entry{url: NewEntry(url, path, fixtureTimestamp, 60)}
	require.NoError(t, saveIndex(t.Context(), newFileStore(dir), filepath.Join(dir, IndexFileName), entries))
	return path
}
