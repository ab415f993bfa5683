package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neoarchlinux/pkgdex/internal/logging"
	"github.com/neoarchlinux/pkgdex/internal/mcp"
	"github.com/neoarchlinux/pkgdex/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the package index over MCP on stdio",
	Long: `Serve speaks the Model Context Protocol on standard input and output,
exposing search, file-ownership, metadata and update tools to MCP
clients. All logging goes to stderr; stdout carries the protocol.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout is the MCP transport; logs must not pollute it.
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level)

	srv, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Info(ctx, "MCP server ready, listening on stdio",
			"cache", cfg.CachePath,
			"driver", storage.DriverName,
			"mode", storage.BuildMode)
		errChan <- srv.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info(ctx, "received signal, shutting down", "signal", sig.String())
		cancel()
		return nil
	case err := <-errChan:
		return err
	}
}
