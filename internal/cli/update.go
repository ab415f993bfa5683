package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neoarchlinux/pkgdex/internal/indexer"
	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

var (
	flagUpdateWorkers int
	flagUpdateNoFiles bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rebuild the package cache from the repository sync archives",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().IntVar(&flagUpdateWorkers, "workers", 0, "Concurrent repository workers (default: one per CPU)")
	updateCmd.Flags().BoolVar(&flagUpdateNoFiles, "no-files", false, "Skip the file-list pass, index descriptors only")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureCacheDir(); err != nil {
		return fmt.Errorf("cannot create cache directory: %w", err)
	}

	store, err := storage.Open(cfg.CachePath, storage.Options{Repositories: cfg.Repositories})
	if err != nil {
		return err
	}
	defer store.Close()

	workers := flagUpdateWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}

	progress := newProgressBar(os.Stderr)
	idx := indexer.New(store, newLogger())

	stats, err := idx.IndexRepositories(cmd.Context(), cfg.SyncDir, &indexer.Config{
		Repositories: cfg.Repositories,
		Workers:      workers,
		SkipFiles:    flagUpdateNoFiles,
		LockPath:     cfg.LockPath(),
		OnProgress:   progress.update,
	})
	progress.finish()
	if err != nil {
		if errors.Is(err, types.ErrUpdateInProgress) {
			return fmt.Errorf("another update is already running (lock: %s)", cfg.LockPath())
		}
		return err
	}

	for _, msg := range stats.ErrorMessages {
		printErr(msg)
	}

	if stats.RepositoriesScanned == 0 {
		printWarn(fmt.Sprintf("no sync archives found in %s", cfg.SyncDir))
		return nil
	}
	if stats.PackagesIndexed == 0 && stats.RepositoriesFailed == 0 {
		fmt.Println("nothing to do")
		return nil
	}

	printOK(fmt.Sprintf("Indexed %d packages (%d unchanged) across %d repositories in %s",
		stats.PackagesIndexed, stats.PackagesSkipped, stats.RepositoriesScanned,
		stats.Duration.Round(time.Millisecond)))
	if stats.MalformedRecords > 0 || stats.OrphanedFileLists > 0 {
		printWarn(fmt.Sprintf("skipped %d malformed and %d orphaned records",
			stats.MalformedRecords, stats.OrphanedFileLists))
	}
	if stats.RepositoriesFailed > 0 {
		return fmt.Errorf("%d of %d repositories failed", stats.RepositoriesFailed, stats.RepositoriesScanned)
	}
	return nil
}

// progressBar renders a single-line bar on stderr while entries are
// processed. A non-terminal stderr stays silent so redirected output is
// not flooded with carriage returns.
type progressBar struct {
	w   io.Writer
	tty bool

	mu        sync.Mutex
	lastDraw  time.Time
	lineDrawn bool
}

const progressBarWidth = 30

func newProgressBar(w io.Writer) *progressBar {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressBar{w: w, tty: tty}
}

// update redraws the bar, rate-limited to one redraw per 100ms. Called
// from multiple repository workers.
func (p *progressBar) update(ev indexer.Progress) {
	if !p.tty || ev.Total <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if ev.Done < ev.Total && now.Sub(p.lastDraw) < 100*time.Millisecond {
		return
	}
	p.lastDraw = now
	p.lineDrawn = true

	filled := int(int64(progressBarWidth) * ev.Done / ev.Total)
	bar := strings.Repeat("=", filled)
	if filled < progressBarWidth {
		bar += ">" + strings.Repeat(" ", progressBarWidth-filled-1)
	}
	pct := float64(ev.Done) / float64(ev.Total) * 100
	fmt.Fprintf(p.w, "\r[%s] %5.1f%%  %d/%d entries", bar, pct, ev.Done, ev.Total)
}

// finish terminates the bar line so subsequent output starts clean.
func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lineDrawn {
		fmt.Fprintln(p.w)
		p.lineDrawn = false
	}
}
