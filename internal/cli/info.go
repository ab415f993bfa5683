package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/locator"
)

var infoCmd = &cobra.Command{
	Use:   "info <package>",
	Short: "Show a package's descriptor fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pkg, err := locator.New(store, newLogger()).Describe(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Name          : %s\n", pkg.Name)
	fmt.Printf("Version       : %s\n", pkg.Version)
	fmt.Printf("Description   : %s\n", pkg.Description)
	fmt.Printf("Repository    : %s\n", pkg.Repo)
	return nil
}
