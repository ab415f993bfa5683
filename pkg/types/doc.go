// Package types provides shared type definitions for the pkgdex index.
//
// This package defines the domain types that flow between the archive
// reader, the cache store, the updater, and the query surfaces.
//
// # Core Types
//
// Package is a repository package descriptor as read from a sync
// archive's desc record:
//
//	pkg := types.Package{
//	    Name:        "gcc",
//	    Version:     "13.2.1-3",
//	    Description: "The GNU Compiler Collection",
//	    Repo:        "core",
//	}
//
// The identifier joining a descriptor to its file list inside an archive
// is the "<name>-<version>" directory prefix:
//
//	id := pkg.Identifier() // "gcc-13.2.1-3"
//
// # Search Results
//
// SearchResult pairs a package with its relevance score. Scores are
// unnormalized TF-IDF style weights; only their ordering is meaningful.
// Rank is 1-based and assigned after sorting.
//
// FileMatch pairs an owning package with one absolute path, as returned
// by file-ownership lookups.
//
// # Errors
//
// Sentinel errors shared across components live here so callers can
// branch with errors.Is without importing internal packages:
//
//	if errors.Is(err, types.ErrCacheMissing) {
//	    // tell the user to run an update
//	}
package types
