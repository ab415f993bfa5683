package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/neoarchlinux/pkgdex/internal/indexer"
	"github.com/neoarchlinux/pkgdex/internal/searcher"
	"github.com/neoarchlinux/pkgdex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeCacheMissing     = -32001 // Package cache has not been built yet
	ErrorCodeUpdateInProgress = -32002 // Another update is already running
	ErrorCodePackageNotFound  = -32003 // No package with the requested name
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

// handleSearchPackages handles the search_packages tool invocation
func (s *Server) handleSearchPackages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":        r.Rank,
			"name":        r.Package.Name,
			"version":     r.Package.Version,
			"description": r.Package.Description,
			"repository":  r.Package.Repo,
			"score":       r.Score,
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_results": resp.TotalResults,
		"candidates":    resp.Candidates,
		"duration_ms":   resp.Duration.Milliseconds(),
		"cache_hit":     resp.CacheHit,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindFileOwner handles the find_file_owner tool invocation
func (s *Server) handleFindFileOwner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	exact := getBoolDefault(args, "exact", false)

	matches, err := s.locator.OwnersOf(ctx, path, exact)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "path lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	owners := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		owners = append(owners, map[string]interface{}{
			"name":       m.Package.Name,
			"version":    m.Package.Version,
			"repository": m.Package.Repo,
			"path":       m.Path,
		})
	}

	// An unowned path is a valid answer, not an error
	response := map[string]interface{}{
		"path":   path,
		"exact":  exact,
		"owners": owners,
		"count":  len(owners),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListPackageFiles handles the list_package_files tool invocation
func (s *Server) handleListPackageFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["package"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "package parameter is required", map[string]interface{}{
			"param":  "package",
			"reason": "missing or empty",
		})
	}

	includeDirs := getBoolDefault(args, "include_directories", false)

	pkg, err := s.locator.Describe(ctx, name)
	if err != nil {
		return nil, packageLookupError(name, err)
	}

	files, err := s.locator.Files(ctx, name, includeDirs)
	if err != nil {
		return nil, packageLookupError(name, err)
	}

	response := map[string]interface{}{
		"package": map[string]interface{}{
			"name":       pkg.Name,
			"version":    pkg.Version,
			"repository": pkg.Repo,
		},
		"files": files,
		"count": len(files),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDescribePackage handles the describe_package tool invocation
func (s *Server) handleDescribePackage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["package"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "package parameter is required", map[string]interface{}{
			"param":  "package",
			"reason": "missing or empty",
		})
	}

	pkg, err := s.locator.Describe(ctx, name)
	if err != nil {
		return nil, packageLookupError(name, err)
	}

	response := map[string]interface{}{
		"name":        pkg.Name,
		"version":     pkg.Version,
		"description": pkg.Description,
		"repository":  pkg.Repo,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateIndex handles the update_index tool invocation
func (s *Server) handleUpdateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		// update_index takes no required parameters
		args = map[string]interface{}{}
	}

	workers := getIntDefault(args, "workers", 0)
	if _, present := args["workers"]; present && (workers < 1 || workers > 32) {
		return nil, newMCPError(ErrorCodeInvalidParams, "workers must be between 1 and 32", map[string]interface{}{
			"param": "workers",
			"value": workers,
		})
	}

	config := &indexer.Config{
		Repositories: s.config.Repositories,
		Workers:      workers,
		LockPath:     s.config.LockPath(),
	}

	stats, err := s.indexer.IndexRepositories(ctx, s.config.SyncDir, config)
	if errors.Is(err, types.ErrUpdateInProgress) {
		return nil, newMCPError(ErrorCodeUpdateInProgress, "another update is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached responses predate the new index contents
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"updated":              true,
		"repositories_scanned": stats.RepositoriesScanned,
		"repositories_failed":  stats.RepositoriesFailed,
		"packages_indexed":     stats.PackagesIndexed,
		"packages_skipped":     stats.PackagesSkipped,
		"file_lists_stored":    stats.FileListsStored,
		"malformed_records":    stats.MalformedRecords,
		"orphaned_file_lists":  stats.OrphanedFileLists,
		"duration_ms":          stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read cache statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	repos := make([]map[string]interface{}, 0, len(stats.Repositories))
	for _, r := range stats.Repositories {
		repos = append(repos, map[string]interface{}{
			"repository": r.Repo,
			"packages":   r.Packages,
		})
	}

	response := map[string]interface{}{
		"cache_path": s.config.CachePath,
		"sync_dir":   s.config.SyncDir,
		"statistics": map[string]interface{}{
			"packages":       stats.Packages,
			"files_indexed":  stats.FilesIndexed,
			"file_rows":      stats.FileRows,
			"repositories":   repos,
			"size_mb":        fmt.Sprintf("%.2f", stats.SizeMB),
			"schema_version": stats.SchemaVersion,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// packageLookupError maps locator failures onto MCP error codes.
func packageLookupError(name string, err error) error {
	if errors.Is(err, types.ErrPackageNotFound) {
		return newMCPError(ErrorCodePackageNotFound, "package not found", map[string]interface{}{
			"package": name,
		})
	}
	if errors.Is(err, types.ErrCacheMissing) {
		return newMCPError(ErrorCodeCacheMissing, "package cache has not been built; run update_index first", nil)
	}
	return newMCPError(ErrorCodeInternalError, "package lookup failed", map[string]interface{}{
		"package": name,
		"error":   err.Error(),
	})
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
