package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/neoarchlinux/pkgdex/internal/config"
	"github.com/neoarchlinux/pkgdex/internal/indexer"
	"github.com/neoarchlinux/pkgdex/internal/locator"
	"github.com/neoarchlinux/pkgdex/internal/logging"
	"github.com/neoarchlinux/pkgdex/internal/searcher"
	"github.com/neoarchlinux/pkgdex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "pkgdex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	config   *config.Config
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	locator  *locator.Locator
	logger   logging.Logger
}

// NewServer creates a new MCP server instance. The cache is opened with
// create semantics so a fresh host can start with update_index instead
// of failing on the missing file. A nil logger discards all output.
func NewServer(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop{}
	}

	if err := cfg.EnsureCacheDir(); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Initialize storage
	store, err := storage.Open(cfg.CachePath, storage.Options{Repositories: cfg.Repositories})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create indexer
	idx := indexer.New(store, logger)

	// Create searcher
	srch := searcher.NewSearcher(store)

	// Create locator
	loc := locator.New(store, logger)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		config:   cfg,
		storage:  store,
		indexer:  idx,
		searcher: srch,
		locator:  loc,
		logger:   logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's storage without serving. Serve closes the
// storage itself; Close covers the construct-then-abort path.
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Query surface
	s.mcp.AddTool(searchPackagesTool(), s.handleSearchPackages)
	s.mcp.AddTool(findFileOwnerTool(), s.handleFindFileOwner)
	s.mcp.AddTool(listPackageFilesTool(), s.handleListPackageFiles)
	s.mcp.AddTool(describePackageTool(), s.handleDescribePackage)

	// Maintenance
	s.mcp.AddTool(updateIndexTool(), s.handleUpdateIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
