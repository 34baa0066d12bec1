package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/cacheproxy/health"
	"github.com/jonwraymond/cacheproxy/observe"
)

type filePoint struct {
	X, Y int
	Tag  string
}

func init() {
	Register(filePoint{})
	Register(map[string]int{})
}

func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewFileStore_InvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "missing"),
		"file":    file,
		"empty":   "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewFileStore(path)
			assert.ErrorIs(t, err, ErrInvalidDirectory)
		})
	}
}

func TestFileStore_PutGet(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "bin", true: "zip"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewFileStore(dir)
			require.NoError(t, err)

			k, err := BuildKey(Policy{Key: "numbers"}, "ListNumbers", []any{"a", 2})
			require.NoError(t, err)

			assert.False(t, s.Has(k))
			_, err = s.Get(k)
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, s.Put(k, []int{1, 2, 3}, compress))
			assert.True(t, s.Has(k))

			got, err := s.Get(k)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, got)

			ext := "bin"
			if compress {
				ext = "zip"
			}
			files := dirFiles(t, dir)
			require.Len(t, files, 1)
			assert.Regexp(t, regexp.MustCompile(`^numbers_[0-9a-f-]{36}\.`+ext+`$`), files[0])

			entries := s.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, k.String(), entries[0].Key)
			assert.Equal(t, "numbers", entries[0].Name)
			assert.Equal(t, compress, entries[0].Compressed)
			assert.Positive(t, entries[0].Size)
		})
	}
}

func TestFileStore_Reload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	plain, err := BuildKey(Policy{}, "Plain", []any{1})
	require.NoError(t, err)
	zipped, err := BuildKey(Policy{}, "Zipped", []any{map[string]any{"b": 1, "a": 2}})
	require.NoError(t, err)
	custom, err := BuildKey(Policy{}, "Point", nil)
	require.NoError(t, err)

	require.NoError(t, s.Put(plain, 10.5, false))
	require.NoError(t, s.Put(zipped, "hello", true))
	require.NoError(t, s.Put(custom, filePoint{X: 1, Y: 2, Tag: "p"}, true))

	reopened, err := NewFileStore(dir, WithStoreScanWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Len())

	rebuilt, err := BuildKey(Policy{}, "Zipped", []any{map[string]any{"a": 2, "b": 1}})
	require.NoError(t, err)

	got, err := reopened.Get(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = reopened.Get(plain)
	require.NoError(t, err)
	assert.Equal(t, 10.5, got)

	got, err = reopened.Get(custom)
	require.NoError(t, err)
	assert.Equal(t, filePoint{X: 1, Y: 2, Tag: "p"}, got)

	names := make([]string, 0, 3)
	for _, e := range reopened.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Plain", "Point", "Zipped"}, names)
}

func TestFileStore_PutReplacesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)

	require.NoError(t, s.Put(k, "first", false))
	require.NoError(t, s.Put(k, "second", true))

	files := dirFiles(t, dir)
	require.Len(t, files, 1)
	assert.Equal(t, ".zip", filepath.Ext(files[0]))

	got, err := s.Get(k)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestFileStore_ScanSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(k, "kept", false))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk_1.bin"), []byte("not gob"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk_2.zip"), []byte("not zip"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.bin"), 0o750))

	var logs bytes.Buffer
	reopened, err := NewFileStore(dir, WithStoreLogger(observe.NewLoggerWithWriter("warn", &logs)))
	require.NoError(t, err)

	assert.Equal(t, 1, reopened.Len())
	got, err := reopened.Get(k)
	require.NoError(t, err)
	assert.Equal(t, "kept", got)

	assert.Contains(t, logs.String(), "junk_1.bin")
	assert.Contains(t, logs.String(), "junk_2.zip")
	assert.NotContains(t, logs.String(), "notes.txt")
}

func TestFileStore_DuplicateKeysNewestWins(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileStore(dir)
	require.NoError(t, err)
	second, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)

	require.NoError(t, first.Put(k, "old", false))
	require.NoError(t, second.Put(k, "new", false))

	old := filepath.Join(dir, first.Entries()[0].File)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(k)
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestFileStore_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(k, "value", false))

	file := filepath.Join(dir, s.Entries()[0].File)
	require.NoError(t, os.WriteFile(file, []byte("garbage"), 0o600))

	_, err = s.Get(k)
	assert.ErrorIs(t, err, ErrCorruptEntry)
	assert.False(t, s.Has(k))

	_, err = s.Get(k)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFileStore_PutUnregisteredType(t *testing.T) {
	type unregistered struct{ A int }

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)

	assert.Error(t, s.Put(k, unregistered{A: 1}, false))
	assert.False(t, s.Has(k))
	assert.Empty(t, dirFiles(t, dir))
}

func TestFileStore_Checker(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	k, err := BuildKey(Policy{}, "op", nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(k, 1, false))

	checker := s.Checker()
	assert.Equal(t, "file_store", checker.Name())

	result := checker.Check(context.Background())
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, 1, result.Entries)
	assert.Equal(t, dir, result.Dir)

	require.NoError(t, os.RemoveAll(dir))
	assert.Equal(t, health.StatusUnhealthy, checker.Check(context.Background()).Status)
}

func TestFileStore_IndexChecker(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(mustKey(t, "op", 1), 1, false))

	checker := s.IndexChecker()
	assert.Equal(t, "index", checker.Name())

	result := checker.Check(context.Background())
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Empty(t, result.Skipped)

	for _, name := range []string{"broken_1.bin", "broken_2.zip", "notes.txt", ".tmp-entry"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("junk"), 0o600))
	}

	files, err := s.Unindexed()
	require.NoError(t, err)
	assert.Equal(t, []string{"broken_1.bin", "broken_2.zip"}, files)

	result = checker.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, result.Status)
	assert.Equal(t, files, result.Skipped)
	assert.Equal(t, "2 entry files not indexed", result.Message)
}

func TestFileStore_EmptyContainers(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "bin", true: "zip"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewFileStore(dir)
			require.NoError(t, err)

			values := map[string]any{
				"slice": []int{},
				"map":   map[string]int{},
				"zero":  0,
			}
			for name, v := range values {
				require.NoError(t, s.Put(mustKey(t, name), v, compress))
			}

			reloaded, err := NewFileStore(dir)
			require.NoError(t, err)
			for _, store := range []*FileStore{s, reloaded} {
				got, err := store.Get(mustKey(t, "slice"))
				require.NoError(t, err)
				require.IsType(t, []int{}, got)
				assert.NotNil(t, got.([]int))
				assert.Empty(t, got)

				got, err = store.Get(mustKey(t, "map"))
				require.NoError(t, err)
				require.IsType(t, map[string]int{}, got)
				assert.NotNil(t, got.(map[string]int))

				got, err = store.Get(mustKey(t, "zero"))
				require.NoError(t, err)
				assert.Equal(t, 0, got)
			}
		})
	}
}
