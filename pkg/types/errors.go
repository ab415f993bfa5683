package types

import "errors"

// Domain errors shared across components
var (
	// ErrCacheMissing indicates the cache database has never been built.
	// Callers surface it distinctly so the user can be told to run an
	// update rather than being shown an empty result.
	ErrCacheMissing = errors.New("package cache missing")

	// ErrPackageNotFound indicates no repository holds the requested name.
	ErrPackageNotFound = errors.New("package not found")

	// ErrUpdateInProgress indicates another update run holds the lock.
	ErrUpdateInProgress = errors.New("update already in progress")
)

// Validation errors
var (
	ErrEmptyName    = errors.New("package name cannot be empty")
	ErrEmptyVersion = errors.New("package version cannot be empty")
	ErrEmptyRepo    = errors.New("repository name cannot be empty")
	ErrInvalidRank  = errors.New("rank must be >= 1")
)
