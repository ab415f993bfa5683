package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/searcher"
)

var flagSearchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <terms...>",
	Short: "Search packages by name and description",
	Long: `Search ranks packages against the query terms, tolerating small
spelling mistakes ("firefix" still finds firefox). Results print worst
match first so the best hit lands right above the prompt.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "n", 0, "Maximum results to show (0 = all)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(args, " ")
	resp, err := searcher.NewSearcher(store).Search(cmd.Context(), searcher.SearchRequest{
		Query: query,
		Limit: flagSearchLimit,
	})
	if err != nil {
		return err
	}

	if len(resp.Results) == 0 {
		printMiss(fmt.Sprintf("no packages match %q", query))
		return nil
	}

	// Worst match first, numbered by rank.
	for i := len(resp.Results) - 1; i >= 0; i-- {
		r := resp.Results[i]
		fmt.Printf(" - [%d] %s-%s %s\n", r.Rank, r.Package.Name, r.Package.Version, r.Package.Description)
	}
	return nil
}
