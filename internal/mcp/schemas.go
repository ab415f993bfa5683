package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchPackagesTool returns the tool definition for search_packages
func searchPackagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_packages",
		Description: "Search the package index with relevance-ranked, typo-tolerant matching over names and descriptions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms (package name fragments or description keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// findFileOwnerTool returns the tool definition for find_file_owner
func findFileOwnerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_file_owner",
		Description: "Find which packages install a given file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path or path fragment (e.g. '/usr/bin/gcc' or 'bin/gcc')",
				},
				"exact": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, match the full path exactly; otherwise match any path ending in the fragment",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// listPackageFilesTool returns the tool definition for list_package_files
func listPackageFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_package_files",
		Description: "List the files a package installs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Exact package name",
				},
				"include_directories": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include directory entries alongside files",
					"default":     false,
				},
			},
			Required: []string{"package"},
		},
	}
}

// describePackageTool returns the tool definition for describe_package
func describePackageTool() mcp.Tool {
	return mcp.Tool{
		Name:        "describe_package",
		Description: "Return name, version, description and repository for a package",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Exact package name",
				},
			},
			Required: []string{"package"},
		},
	}
}

// updateIndexTool returns the tool definition for update_index
func updateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_index",
		Description: "Rebuild the package index from the configured repository sync archives",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Number of repositories to process concurrently (default: one per CPU)",
					"minimum":     1,
					"maximum":     32,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query package cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
