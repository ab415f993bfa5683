package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neoarchlinux/pkgdex/internal/archive"
	"github.com/neoarchlinux/pkgdex/internal/logging"
	"github.com/neoarchlinux/pkgdex/internal/parser"
	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// syncArchiveSuffix is the extension of repository file databases in a
// pacman sync directory ("core.files", "extra.files", ...).
const syncArchiveSuffix = ".files"

// defaultBatchSize is the number of descriptor upserts per transaction.
const defaultBatchSize = 100

// Indexer coordinates the update pipeline: read archives -> parse
// records -> store descriptors and file lists.
type Indexer struct {
	storage storage.Storage
	logger  logging.Logger
	lock    IndexLock

	// Default worker count for runs that do not set their own
	workers int
}

// Config contains configuration for an update run
type Config struct {
	Repositories []string      // Restrict the run to these repositories (default: every archive found)
	Workers      int           // Number of concurrent repository workers (default: runtime.NumCPU())
	BatchSize    int           // Number of descriptor upserts per transaction (default: 100)
	SkipFiles    bool          // Index descriptors only, leave file lists for a later run (default: false)
	LockPath     string        // Cross-process lock file; empty disables file locking
	LockTimeout  time.Duration // How long to wait for the file lock (default: fail immediately)
	OnProgress   ProgressFunc  // Optional progress callback
}

// Stage identifies which pass over an archive a progress event belongs to.
type Stage string

// Update passes in the order they run per repository.
const (
	StageDescriptors Stage = "descriptors"
	StageFiles       Stage = "files"
)

// Progress is a snapshot emitted as archive entries are processed.
// Totals count every entry of every archive twice, once per pass; a run
// with SkipFiles set counts each entry once.
type Progress struct {
	Repo  string // repository whose counter just advanced
	Stage Stage
	Done  int64
	Total int64
}

// ProgressFunc receives progress snapshots. Repositories are processed
// concurrently, so implementations must be safe for concurrent use.
type ProgressFunc func(Progress)

// Statistics contains statistics about the update operation
type Statistics struct {
	RepositoriesScanned int
	RepositoriesFailed  int
	PackagesIndexed     int // descriptors stored or refreshed
	PackagesSkipped     int // identifiers already cached with a complete file list
	FileListsStored     int
	MalformedRecords    int // desc records missing %NAME% or %VERSION%
	OrphanedFileLists   int // files entries without a matching desc entry
	Duration            time.Duration
	ErrorMessages       []string
}

// counters aggregates per-entry outcomes across repository workers.
type counters struct {
	indexed   atomic.Int32
	skipped   atomic.Int32
	fileLists atomic.Int32
	malformed atomic.Int32
	orphaned  atomic.Int32
	failed    atomic.Int32
}

// tracker feeds the progress callback from a shared completion counter.
type tracker struct {
	total int64
	done  atomic.Int64
	fn    ProgressFunc
}

func newTracker(total int64, fn ProgressFunc) *tracker {
	return &tracker{total: total, fn: fn}
}

func (t *tracker) inc(repo string, stage Stage) {
	done := t.done.Add(1)
	if t.fn != nil {
		t.fn(Progress{Repo: repo, Stage: stage, Done: done, Total: t.total})
	}
}

// repoArchive pairs a repository name with its sync archive path.
type repoArchive struct {
	Repo string
	Path string
}

// New creates a new Indexer instance. A nil logger discards all output.
func New(store storage.Storage, logger logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Indexer{
		storage: store,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// IndexRepositories updates the package cache from every sync archive in
// syncDir. Packages whose file list is already complete for their exact
// version are skipped, so repeat runs only pay for what changed.
func (idx *Indexer) IndexRepositories(ctx context.Context, syncDir string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = idx.workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	if !idx.lock.TryAcquire() {
		return nil, types.ErrUpdateInProgress
	}
	defer idx.lock.Release()

	if config.LockPath != "" {
		release, err := acquireFileLock(config.LockPath, config.LockTimeout)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	archives, err := idx.discoverArchives(ctx, syncDir, config)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync directory: %w", err)
	}
	stats.RepositoriesScanned = len(archives)
	if len(archives) == 0 {
		idx.logger.Warn(ctx, "no sync archives found", "dir", syncDir)
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	counts := &counters{}
	var mu sync.Mutex

	// Pre-count entries so progress totals are known up front. Each
	// archive is walked once per pass.
	passes := int64(2)
	if config.SkipFiles {
		passes = 1
	}
	var totalWork int64
	runnable := make([]repoArchive, 0, len(archives))
	for _, ra := range archives {
		n, err := archive.CountEntries(ra.Path)
		if err != nil {
			idx.logger.Error(ctx, "skipping unreadable sync archive",
				"repo", ra.Repo, "path", ra.Path, "error", err)
			counts.failed.Add(1)
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", ra.Repo, err))
			continue
		}
		totalWork += passes * int64(n)
		runnable = append(runnable, ra)
	}

	track := newTracker(totalWork, config.OnProgress)

	// Update repositories concurrently. Each worker owns one archive end
	// to end; the skip set and the desc/files join never cross repository
	// boundaries.
	g, gctx := errgroup.WithContext(ctx)
	semaphore := make(chan struct{}, config.Workers)

	for _, ra := range runnable {
		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-gctx.Done():
				return gctx.Err()
			}
			return idx.updateRepo(gctx, ra, config, track, counts, &mu, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to update package index: %w", err)
	}

	stats.RepositoriesFailed = int(counts.failed.Load())
	stats.PackagesIndexed = int(counts.indexed.Load())
	stats.PackagesSkipped = int(counts.skipped.Load())
	stats.FileListsStored = int(counts.fileLists.Load())
	stats.MalformedRecords = int(counts.malformed.Load())
	stats.OrphanedFileLists = int(counts.orphaned.Load())
	stats.Duration = time.Since(startTime)

	idx.logger.Info(ctx, "package index updated",
		"repos", stats.RepositoriesScanned,
		"indexed", stats.PackagesIndexed,
		"skipped", stats.PackagesSkipped,
		"file_lists", stats.FileListsStored,
		"duration", stats.Duration)

	return stats, nil
}

// discoverArchives lists the sync archives to process. os.ReadDir returns
// entries sorted by name, so the result order is deterministic.
func (idx *Indexer) discoverArchives(ctx context.Context, syncDir string, config *Config) ([]repoArchive, error) {
	entries, err := os.ReadDir(syncDir)
	if err != nil {
		return nil, err
	}

	var want map[string]struct{}
	if len(config.Repositories) > 0 {
		want = make(map[string]struct{}, len(config.Repositories))
		for _, repo := range config.Repositories {
			want[repo] = struct{}{}
		}
	}

	var archives []repoArchive
	found := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), syncArchiveSuffix) {
			continue
		}
		repo := strings.TrimSuffix(e.Name(), syncArchiveSuffix)
		if want != nil {
			if _, ok := want[repo]; !ok {
				continue
			}
		}
		found[repo] = struct{}{}
		archives = append(archives, repoArchive{Repo: repo, Path: filepath.Join(syncDir, e.Name())})
	}

	for _, repo := range config.Repositories {
		if _, ok := found[repo]; !ok {
			idx.logger.Warn(ctx, "no sync archive for configured repository", "repo", repo, "dir", syncDir)
		}
	}

	return archives, nil
}

// updateRepo runs both passes for a single repository. Archive-level
// failures are contained: the repository is reported and skipped while
// the rest of the run continues. Storage and context errors abort the
// whole run.
func (idx *Indexer) updateRepo(ctx context.Context, ra repoArchive, config *Config, track *tracker, counts *counters, mu *sync.Mutex, stats *Statistics) error {
	cached, err := idx.storage.CachedIdentifiers(ctx, ra.Repo)
	if err != nil {
		return fmt.Errorf("failed to load cached identifiers for %s: %w", ra.Repo, err)
	}

	// arena joins the two passes: identifiers seen in the desc pass map
	// to their package name for the files pass. broken records malformed
	// identifiers so their file lists are dropped without a second warning.
	arena := make(map[string]string)
	broken := make(map[string]struct{})

	err = idx.indexDescriptors(ctx, ra, config, cached, arena, broken, track, counts)
	if err == nil && !config.SkipFiles {
		err = idx.indexFileLists(ctx, ra, cached, arena, broken, track, counts)
	}
	if err != nil {
		if errors.Is(err, archive.ErrOpen) || errors.Is(err, archive.ErrCorrupt) {
			idx.logger.Error(ctx, "abandoning repository, archive unreadable",
				"repo", ra.Repo, "path", ra.Path, "error", err)
			counts.failed.Add(1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", ra.Repo, err))
			mu.Unlock()
			return nil
		}
		return err
	}
	return nil
}

// indexDescriptors is the first pass: store every desc record that is not
// already cached. Upserts are grouped into transactions so the database
// connection is released between batches.
func (idx *Indexer) indexDescriptors(ctx context.Context, ra repoArchive, config *Config, cached map[string]struct{}, arena map[string]string, broken map[string]struct{}, track *tracker, counts *counters) error {
	rd, err := archive.Open(ra.Path)
	if err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()

	batch := make([]*types.Package, 0, config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := idx.storage.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin descriptor transaction: %w", err)
		}
		for _, pkg := range batch {
			if err := tx.UpsertPackage(ctx, pkg); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to store descriptor %s/%s: %w", pkg.Repo, pkg.Name, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit descriptor batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		track.inc(ra.Repo, StageDescriptors)

		if entry.Kind != archive.KindDesc {
			continue
		}
		if _, ok := cached[entry.Identifier]; ok {
			counts.skipped.Add(1)
			continue
		}

		desc, err := parser.ParseDesc(entry)
		if err != nil {
			if errors.Is(err, parser.ErrMissingName) || errors.Is(err, parser.ErrMissingVersion) {
				idx.logger.Warn(ctx, "skipping malformed descriptor",
					"repo", ra.Repo, "entry", entry.Identifier, "error", err)
				broken[entry.Identifier] = struct{}{}
				counts.malformed.Add(1)
				continue
			}
			return err
		}

		arena[entry.Identifier] = desc.Name
		batch = append(batch, &types.Package{
			Name:        desc.Name,
			Version:     desc.Version,
			Description: desc.Description,
			Repo:        ra.Repo,
		})
		counts.indexed.Add(1)

		if len(batch) >= config.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// indexFileLists is the second pass: replace the file list of every
// package whose descriptor was stored in the first pass. Each list is
// written in its own transaction and marks the package complete, so an
// interrupted run resumes exactly where it stopped.
func (idx *Indexer) indexFileLists(ctx context.Context, ra repoArchive, cached map[string]struct{}, arena map[string]string, broken map[string]struct{}, track *tracker, counts *counters) error {
	rd, err := archive.Open(ra.Path)
	if err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		track.inc(ra.Repo, StageFiles)

		if entry.Kind != archive.KindFiles {
			continue
		}
		if _, ok := cached[entry.Identifier]; ok {
			continue
		}
		if _, ok := broken[entry.Identifier]; ok {
			continue
		}
		name, ok := arena[entry.Identifier]
		if !ok {
			idx.logger.Warn(ctx, "file list has no matching descriptor",
				"repo", ra.Repo, "entry", entry.Identifier)
			counts.orphaned.Add(1)
			continue
		}

		paths, err := parser.ParseFiles(entry)
		if err != nil {
			return err
		}
		if err := idx.storage.ReplaceFiles(ctx, ra.Repo, name, paths); err != nil {
			return fmt.Errorf("failed to store file list for %s/%s: %w", ra.Repo, name, err)
		}
		counts.fileLists.Add(1)
	}
}
