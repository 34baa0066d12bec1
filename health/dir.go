package health

import (
	"context"
	"fmt"
	"os"
)

// DirChecker checks that a cache directory exists and accepts new files.
type DirChecker struct {
	dir string
}

// NewDirChecker creates a checker for dir.
func NewDirChecker(dir string) *DirChecker {
	return &DirChecker{dir: dir}
}

// Name returns "cache_dir".
func (d *DirChecker) Name() string {
	return "cache_dir"
}

// Check stats the directory and writes and removes a hidden temp file.
func (d *DirChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err).ForDir(d.dir)
	}

	info, err := os.Stat(d.dir)
	if err != nil {
		return Unhealthy("directory unavailable", fmt.Errorf("%w: %w", ErrDirUnavailable, err)).ForDir(d.dir)
	}
	if !info.IsDir() {
		return Unhealthy("not a directory", fmt.Errorf("%w: %s", ErrNotDirectory, d.dir)).ForDir(d.dir)
	}

	tmp, err := os.CreateTemp(d.dir, ".health-*")
	if err != nil {
		return Unhealthy("directory not writable", fmt.Errorf("%w: %w", ErrNotWritable, err)).ForDir(d.dir)
	}
	name := tmp.Name()
	_ = tmp.Close()
	if err := os.Remove(name); err != nil {
		return Degraded("temp file left behind").ForDir(d.dir)
	}

	return Healthy("directory writable").ForDir(d.dir)
}
