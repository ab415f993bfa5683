package storage

import (
	"context"

	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// Storage defines the interface for persisting and querying the package index
type Storage interface {
	// Update operations
	UpsertPackage(ctx context.Context, pkg *types.Package) error
	ReplaceFiles(ctx context.Context, repo, name string, paths []string) error
	CachedIdentifiers(ctx context.Context, repo string) (map[string]struct{}, error)

	// Single-package queries, resolved by repository priority
	PackageExists(ctx context.Context, name string) (bool, error)
	ResolvePackage(ctx context.Context, name string) (*types.Package, error)
	PackageFiles(ctx context.Context, name string, includeDirs bool) ([]string, error)

	// Path ownership
	FindByPath(ctx context.Context, path string, exact bool) ([]types.FileMatch, error)

	// Search support
	DistinctNames(ctx context.Context) ([]string, error)
	SearchCandidates(ctx context.Context, terms []string) ([]types.Package, error)

	// Status operations
	Stats(ctx context.Context) (*IndexStats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Options configures a storage instance.
type Options struct {
	// Repositories in priority order. When the same package name exists
	// in several repositories, single-package queries resolve to the
	// earliest listed one. Unlisted repositories rank after all listed
	// ones, tied on repository name ascending so resolution is stable.
	Repositories []string
}

// IndexStats contains statistics about the package cache
type IndexStats struct {
	Packages      int
	FilesIndexed  int // packages whose file list is complete
	FileRows      int64
	Repositories  []RepoStats
	SizeMB        float64
	SchemaVersion string
}

// RepoStats holds per-repository package counts
type RepoStats struct {
	Repo     string
	Packages int
}
