package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrMiss reports that a store holds no entry for a key. The Proxy never
	// returns it; a miss always turns into a compute-or-wait step.
	ErrMiss = errors.New("cache: entry not found")

	// ErrCorruptEntry reports an indexed entry file that can no longer be read.
	ErrCorruptEntry = errors.New("cache: entry file is unreadable")

	// ErrUnkeyable reports an argument that has no canonical encoding.
	ErrUnkeyable = errors.New("cache: argument cannot be part of a key")
)

// Configuration errors. Wrap and NewFileStore return them wrapped with context.
var (
	ErrNilObject        = errors.New("cache: object is nil")
	ErrInvalidDirectory = errors.New("cache: not an existing directory")
	ErrInvalidPolicy    = errors.New("cache: invalid policy")
	ErrInvalidConfig    = errors.New("cache: invalid config")
)

// Invariant violations.
var (
	// ErrUnknownOperation reports a call to an operation the object does not expose.
	ErrUnknownOperation = errors.New("cache: unknown operation")

	// ErrResultType reports an operation result that does not match the type
	// requested through Call.
	ErrResultType = errors.New("cache: unexpected result type")
)
