package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show package cache statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	printSection("Package Cache")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Path\t%s\n", cfg.CachePath)
	fmt.Fprintf(w, "  Sync dir\t%s\n", cfg.SyncDir)
	fmt.Fprintf(w, "  Schema\t%s\n", stats.SchemaVersion)
	fmt.Fprintf(w, "  Size\t%.2f MB\n", stats.SizeMB)
	fmt.Fprintf(w, "  Packages\t%d (%d with file lists)\n", stats.Packages, stats.FilesIndexed)
	fmt.Fprintf(w, "  File rows\t%d\n", stats.FileRows)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stats.Repositories) == 0 {
		printMiss("cache is empty; run 'pkgdex update'")
		return nil
	}

	printBullet("Repositories:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range stats.Repositories {
		fmt.Fprintf(w, "  %s\t%d packages\n", r.Repo, r.Packages)
	}
	return w.Flush()
}
