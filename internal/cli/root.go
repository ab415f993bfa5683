package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/config"
	"github.com/neoarchlinux/pkgdex/internal/logging"
	"github.com/neoarchlinux/pkgdex/internal/storage"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "pkgdex",
	Short:        "pkgdex — fast offline queries over pacman package databases",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `pkgdex indexes the pacman sync databases into a local cache and answers
search, file-ownership and metadata queries against it without touching
the network or the system package manager.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: ~/.config/pkgdex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration honoring the --config flag and
// environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger on stderr. Warnings and errors only,
// unless --verbose is set.
func newLogger() logging.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return logging.New(os.Stderr, level)
}

// openExistingStore opens the cache for the read-only verbs. A cache
// that has never been built gets a pointer at the fix instead of a bare
// file-not-found.
func openExistingStore(cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.OpenExisting(cfg.CachePath, storage.Options{Repositories: cfg.Repositories})
	if err != nil {
		if errors.Is(err, types.ErrCacheMissing) {
			return nil, fmt.Errorf("no package cache; run 'pkgdex update'")
		}
		return nil, err
	}
	return store, nil
}
