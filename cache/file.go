package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cacheproxy/health"
	"github.com/jonwraymond/cacheproxy/observe"
)

// DefaultScanWorkers is the number of entry files decoded in parallel while
// a FileStore rebuilds its index.
const DefaultScanWorkers = 8

// EntryInfo describes one indexed entry file.
type EntryInfo struct {
	Key        string    // canonical key
	Name       string    // first key element, also the file prefix
	File       string    // base name inside the store directory
	Compressed bool      // zip archive rather than raw gob
	Size       int64     // bytes on disk
	ModTime    time.Time // last write
}

// FileStore keeps one file per entry in a flat directory. The index from
// canonical key to file is held in memory and rebuilt from file contents by
// NewFileStore.
//
// Contract:
//   - Concurrency: safe for concurrent use. File I/O happens outside the
//     index lock, so writers to distinct keys do not block each other.
//   - Ownership: one FileStore per directory per process.
type FileStore struct {
	dir     string
	logger  observe.Logger
	workers int

	mu    sync.RWMutex
	index map[string]EntryInfo
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithStoreLogger sets the logger used for skipped files and cleanup failures.
func WithStoreLogger(l observe.Logger) FileStoreOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreScanWorkers bounds the parallel decoders used by the startup scan.
func WithStoreScanWorkers(n int) FileStoreOption {
	return func(s *FileStore) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewFileStore opens dir and rebuilds the index from the entry files in it.
// dir must be an existing directory.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	s := &FileStore{
		dir:     dir,
		logger:  observe.NopLogger(),
		workers: DefaultScanWorkers,
		index:   make(map[string]EntryInfo),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func checkDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidDirectory)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidDirectory, dir)
	}
	return nil
}

// scan decodes the header of every entry file in the directory.
func (s *FileStore) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}

	ctx := context.Background()
	var (
		g       errgroup.Group
		mu      sync.Mutex
		scanned = make(map[string]EntryInfo)
	)
	g.SetLimit(s.workers)

	for _, de := range entries {
		if de.IsDir() || !isEntryFile(de.Name()) {
			continue
		}
		g.Go(func() error {
			info, err := s.inspect(de)
			if err != nil {
				s.logger.Warn(ctx, "skipping unreadable entry file",
					observe.Field{Key: "file", Value: de.Name()},
					observe.Field{Key: "error", Value: err})
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if prev, ok := scanned[info.Key]; ok && !newer(info, prev) {
				return nil
			}
			scanned[info.Key] = info
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.index = scanned
	s.mu.Unlock()

	s.logger.Debug(ctx, "file store index rebuilt",
		observe.Field{Key: "dir", Value: s.dir},
		observe.Field{Key: "entries", Value: len(scanned)})
	return nil
}

func (s *FileStore) inspect(de os.DirEntry) (EntryInfo, error) {
	fi, err := de.Info()
	if err != nil {
		return EntryInfo{}, err
	}
	hdr, _, err := readEntry(filepath.Join(s.dir, de.Name()), true)
	if err != nil {
		return EntryInfo{}, err
	}
	return EntryInfo{
		Key:        hdr.Key,
		Name:       hdr.Name,
		File:       de.Name(),
		Compressed: isCompressed(de.Name()),
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
	}, nil
}

// newer orders duplicate entries by modification time, then by file name.
func newer(a, b EntryInfo) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.File > b.File
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Has reports whether key is indexed.
func (s *FileStore) Has(key Key) bool {
	s.mu.RLock()
	_, ok := s.index[key.id]
	s.mu.RUnlock()
	return ok
}

// Get decodes the entry indexed for key. It returns ErrMiss when key is not
// indexed. An indexed file that cannot be decoded is dropped from the index
// and reported as ErrCorruptEntry.
func (s *FileStore) Get(key Key) (any, error) {
	s.mu.RLock()
	info, ok := s.index[key.id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}

	hdr, value, err := readEntry(filepath.Join(s.dir, info.File), false)
	if err == nil && hdr.Key != key.id {
		err = fmt.Errorf("file holds key %s", hdr.Key)
	}
	if err != nil {
		s.mu.Lock()
		if cur, ok := s.index[key.id]; ok && cur.File == info.File {
			delete(s.index, key.id)
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, info.File, err)
	}
	return value, nil
}

// Put writes value for key into a new file and indexes it. The file is
// named <key.Name()>_<uuid>.zip when compress is set and
// <key.Name()>_<uuid>.bin otherwise. A file previously indexed for key is
// removed.
func (s *FileStore) Put(key Key, value any, compress bool) error {
	if key.IsZero() {
		return errors.New("cache: put with zero key")
	}

	ext := extPlain
	if compress {
		ext = extCompressed
	}
	name := key.name + "_" + uuid.NewString() + ext

	size, err := s.writeFile(name, key, value, compress)
	if err != nil {
		return fmt.Errorf("cache: write %s: %w", name, err)
	}

	info := EntryInfo{
		Key:        key.id,
		Name:       key.name,
		File:       name,
		Compressed: compress,
		Size:       size,
		ModTime:    time.Now(),
	}

	s.mu.Lock()
	prev, replaced := s.index[key.id]
	s.index[key.id] = info
	s.mu.Unlock()

	if replaced && prev.File != name {
		if err := os.Remove(filepath.Join(s.dir, prev.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(context.Background(), "failed to remove superseded entry file",
				observe.Field{Key: "file", Value: prev.File},
				observe.Field{Key: "error", Value: err})
		}
	}
	return nil
}

// writeFile writes the entry to a hidden temp file and renames it into place.
func (s *FileStore) writeFile(name string, key Key, value any, compress bool) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := writeEntry(tmp, key, value, compress); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, err
	}
	fi, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		cleanup()
		return 0, err
	}
	return fi.Size(), nil
}

// Len returns the number of indexed entries.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Entries returns the index sorted by name, then file.
func (s *FileStore) Entries() []EntryInfo {
	s.mu.RLock()
	out := make([]EntryInfo, 0, len(s.index))
	for _, info := range s.index {
		out = append(out, info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].File < out[j].File
	})
	return out
}

// Unindexed returns the entry files in the store directory that the index
// does not serve, sorted by name. Superseded duplicates and files the startup
// scan could not decode are both reported.
func (s *FileStore) Unindexed() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	indexed := make(map[string]bool, len(s.index))
	for _, info := range s.index {
		indexed[info.File] = true
	}
	s.mu.RUnlock()

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() || !isEntryFile(de.Name()) || indexed[de.Name()] {
			continue
		}
		files = append(files, de.Name())
	}
	return files, nil
}

// Checker returns a health check over the store directory that also reports
// the number of indexed entries.
func (s *FileStore) Checker() health.Checker {
	dir := health.NewDirChecker(s.dir)
	return health.Func("file_store", func(ctx context.Context) health.Result {
		return dir.Check(ctx).WithEntries(s.Len())
	})
}

// IndexChecker returns a health check that is degraded while entry files
// exist that the index does not serve.
func (s *FileStore) IndexChecker() health.Checker {
	return health.Func("index", func(context.Context) health.Result {
		files, err := s.Unindexed()
		if err != nil {
			return health.Unhealthy("cannot list directory", err).ForDir(s.dir)
		}
		msg := "all entry files indexed"
		if len(files) > 0 {
			msg = fmt.Sprintf("%d entry files not indexed", len(files))
		}
		return health.Healthy(msg).ForDir(s.dir).WithEntries(s.Len()).WithSkipped(files)
	})
}
