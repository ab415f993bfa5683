// Package storage provides SQLite-based persistence for the package index.
//
// The storage layer manages:
//   - Package descriptors (name, version, description, repository)
//   - Per-package file lists
//   - The files_indexed completeness flag driving incremental updates
//   - Repository-priority resolution for duplicate names
//
// # Database Schema
//
// Tables:
//   - packages: one row per (repo, name) descriptor
//   - package_files: one row per (repo, name, path)
//   - schema_version: applied migration versions
//
// # Basic Usage
//
//	store, err := storage.Open("/var/cache/pkgdex/pkgdex.db", storage.Options{
//	    Repositories: []string{"core", "extra", "multilib"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	pkg, err := store.ResolvePackage(ctx, "gcc")
//
// Read-only callers use OpenExisting instead, which reports a never
// built cache as types.ErrCacheMissing rather than creating an empty
// database.
//
// # Repository Priority
//
// The Options.Repositories order decides which repository wins when a
// name exists in several. Queries embed a CASE ranking expression built
// from that configuration; everything user-supplied is a bound
// parameter.
//
// # Transactions
//
// ReplaceFiles is internally transactional: the old file list, the new
// rows and the files_indexed flag move together or not at all. Callers
// batching many descriptor upserts can hold their own transaction:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//	for _, pkg := range batch {
//	    if err := tx.UpsertPackage(ctx, pkg); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Build Tags
//
// Two driver configurations are supported:
//
// Default (pure Go):
//
//   - Uses modernc.org/sqlite
//
//   - No C compiler needed, cross-compiles cleanly
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//   - Faster ingest on large repository sets
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
package storage
