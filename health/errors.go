package health

import "errors"

var (
	// ErrDirUnavailable reports a cache directory that cannot be stat'ed.
	ErrDirUnavailable = errors.New("health: cache directory unavailable")

	// ErrNotDirectory reports a cache path that is not a directory.
	ErrNotDirectory = errors.New("health: cache path is not a directory")

	// ErrNotWritable reports a cache directory that refuses new files.
	ErrNotWritable = errors.New("health: cache directory not writable")

	// ErrCheckTimeout reports a check that did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound reports an unregistered checker name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
