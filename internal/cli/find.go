package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/locator"
)

var flagFindExact bool

var findCmd = &cobra.Command{
	Use:   "find <path>",
	Short: "Find which packages install a file path",
	Long: `Find matches the given path against every indexed file list. By default
any file whose path ends in the argument matches; with --exact the full
absolute path must match. Exact lookups through the /bin, /lib, /lib64
and /sbin symlinks are resolved against their /usr targets.`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

func init() {
	findCmd.Flags().BoolVar(&flagFindExact, "exact", false, "Match the full path instead of a suffix")
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	matches, err := locator.New(store, newLogger()).OwnersOf(cmd.Context(), args[0], flagFindExact)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no package owns %s", args[0])
	}

	for _, m := range matches {
		fmt.Printf("%s: %s\n", m.Package.Name, m.Path)
	}
	return nil
}
