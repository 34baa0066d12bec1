package health

import (
	"context"
	"time"
)

// Status grades cache storage. Statuses are ordered from best to worst.
type Status uint8

const (
	// StatusHealthy means entries can be read and written.
	StatusHealthy Status = iota
	// StatusDegraded means the store works but some entry files are not served.
	StatusDegraded
	// StatusUnhealthy means the directory cannot hold new entries.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Worst returns the more severe of s and o.
func (s Status) Worst(o Status) Status {
	return max(s, o)
}

// Result is the outcome of checking a cache directory or the store over it.
type Result struct {
	Status  Status
	Message string
	Err     error

	// Dir is the directory the check looked at, if any.
	Dir string
	// Entries is the number of indexed entries, when the check owns an index.
	Entries int
	// Skipped lists entry files present on disk that the index does not serve.
	Skipped []string

	Duration  time.Duration
	CheckedAt time.Time
}

func newResult(s Status, message string, err error) Result {
	return Result{Status: s, Message: message, Err: err, CheckedAt: time.Now()}
}

// Healthy returns a healthy Result.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded returns a degraded Result.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy returns an unhealthy Result caused by err.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message, err)
}

// ForDir records the directory r describes.
func (r Result) ForDir(dir string) Result {
	r.Dir = dir
	return r
}

// WithEntries records the number of indexed entries.
func (r Result) WithEntries(n int) Result {
	r.Entries = n
	return r
}

// WithSkipped records entry files the index does not serve. A healthy result
// with skipped files is degraded.
func (r Result) WithSkipped(files []string) Result {
	r.Skipped = files
	if len(files) > 0 {
		r.Status = r.Status.Worst(StatusDegraded)
	}
	return r
}

// Summary returns the message followed by the error, if any.
func (r Result) Summary() string {
	if r.Err == nil {
		return r.Message
	}
	if r.Message == "" {
		return r.Err.Error()
	}
	return r.Message + ": " + r.Err.Error()
}

// Checker checks one part of cache storage.
//
// Contract:
//   - Concurrency: Check must be safe for concurrent use.
//   - Context: Check should return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// Func returns a Checker named name that calls fn.
func Func(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

func (f funcChecker) Name() string { return f.name }

func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }
