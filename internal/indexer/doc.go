// Package indexer builds and refreshes the package cache from repository
// sync archives.
//
// The indexer scans a pacman-style sync directory for "<repo>.files"
// archives and replays their desc and files records into storage,
// managing concurrency, incremental skips, and error containment for
// full-distribution updates.
//
// # Basic Usage
//
//	idx := indexer.New(store, logger)
//
//	stats, err := idx.IndexRepositories(ctx, "/var/lib/pacman/sync", &indexer.Config{
//	    Workers:  4,
//	    LockPath: "/home/user/.cache/pkgdex/pkgdex.db.lock",
//	})
//
//	fmt.Printf("Indexed %d packages in %v\n", stats.PackagesIndexed, stats.Duration)
//
// # Update Pipeline
//
// The indexer executes a two-pass pipeline per repository:
//
//  1. Discovery: list "<repo>.files" archives in the sync directory
//  2. Pre-count: walk each archive once so progress totals are exact
//  3. Descriptor pass: parse desc records, upsert name/version/description
//  4. File pass: parse files records, replace each package's path list
//
// The descriptor pass runs to completion before the file pass starts, so
// every files record can be joined to the package name its desc record
// carried. Entries inside an archive arrive in tar order; nothing assumes
// desc precedes files for any given package.
//
// # Incremental Updates
//
// A package is identified by its "<name>-<version>" archive directory.
// Identifiers whose file list is already complete are skipped in both
// passes:
//
//	// First run: processes all entries
//	stats1, _ := idx.IndexRepositories(ctx, syncDir, nil)
//	// Packages: 14305 indexed, 0 skipped
//
//	// Second run: nothing changed
//	stats2, _ := idx.IndexRepositories(ctx, syncDir, nil)
//	// Packages: 0 indexed, 14305 skipped
//
// Storing a descriptor clears its file-list marker and storing the file
// list sets it again, so a run interrupted between the two passes leaves
// the affected identifiers unmarked and the next run redoes them. A
// version bump changes the identifier itself, which re-indexes the
// package and replaces its stale file list.
//
// # Concurrent Processing
//
// Repositories are independent: the skip set and the desc/files join
// never cross archive boundaries. The indexer therefore fans out one
// worker per repository, bounded by Config.Workers:
//
//	g, gctx := errgroup.WithContext(ctx)
//	semaphore := make(chan struct{}, workers)
//
// Default: runtime.NumCPU() workers, though the effective parallelism is
// capped by the number of archives.
//
// # Error Handling
//
// Failures are contained at the repository boundary:
//
//	stats, err := idx.IndexRepositories(ctx, syncDir, config)
//	// err only returned for fatal errors (storage failure, cancellation)
//
//	if stats.RepositoriesFailed > 0 {
//	    for _, msg := range stats.ErrorMessages {
//	        log.Println(msg)
//	    }
//	}
//
// Within a repository:
//   - Unreadable or corrupt archive: abandon the repository, keep the rest
//   - desc without %NAME% or %VERSION%: warn, skip the record
//   - files without a matching desc: warn, skip the record
//
// # Locking
//
// Two guards keep concurrent updates off the same cache. An in-process
// atomic lock rejects a second IndexRepositories call immediately, and an
// optional advisory file lock (Config.LockPath) covers separate
// processes. Both surface types.ErrUpdateInProgress.
//
// # Progress Tracking
//
// Monitor progress with a callback:
//
//	config.OnProgress = func(p indexer.Progress) {
//	    fmt.Printf("[%s] %d/%d\n", p.Repo, p.Done, p.Total)
//	}
//
// Every archive entry counts once per pass, so Total is twice the entry
// count of all archives (once with SkipFiles). Callbacks arrive from
// multiple goroutines.
package indexer
