package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/locator"
)

var flagFilesDirs bool

var filesCmd = &cobra.Command{
	Use:   "files <package>",
	Short: "List the files a package installs",
	Args:  cobra.ExactArgs(1),
	RunE:  runFiles,
}

func init() {
	filesCmd.Flags().BoolVar(&flagFilesDirs, "dirs", false, "Include directory entries")
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	paths, err := locator.New(store, newLogger()).Files(cmd.Context(), args[0], flagFilesDirs)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
