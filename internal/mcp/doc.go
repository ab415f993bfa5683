// Package mcp implements the Model Context Protocol (MCP) server for pkgdex.
//
// The MCP server exposes the package index to AI coding assistants:
//   - search_packages: Relevance-ranked, typo-tolerant package search
//   - find_file_owner: Which packages install a given path
//   - list_package_files: Files a package installs
//   - describe_package: Name, version, description, repository
//   - update_index: Rebuild the index from the sync archives
//   - get_status: Cache statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	pkgdex serve
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout.
//
// # Tool: search_packages
//
// Search the index with free-form terms:
//
//	Request:
//	{
//	  "name": "search_packages",
//	  "arguments": {
//	    "query": "web browser",
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "query": "web browser",
//	  "results": [
//	    {
//	      "rank": 1,
//	      "name": "firefox",
//	      "version": "128.0-1",
//	      "description": "Fast, Private & Safe Web Browser",
//	      "repository": "extra",
//	      "score": 4.83
//	    }
//	  ],
//	  "total_results": 14,
//	  "candidates": 131,
//	  "duration_ms": 12,
//	  "cache_hit": false
//	}
//
// # Tool: find_file_owner
//
// Resolve a path to the packages installing it:
//
//	Request:
//	{
//	  "name": "find_file_owner",
//	  "arguments": {
//	    "path": "/usr/bin/gcc",
//	    "exact": true
//	  }
//	}
//
//	Response:
//	{
//	  "path": "/usr/bin/gcc",
//	  "exact": true,
//	  "owners": [
//	    {"name": "gcc", "version": "13.2.1-3", "repository": "core", "path": "/usr/bin/gcc"}
//	  ],
//	  "count": 1
//	}
//
// An unowned path returns count 0, not an error.
//
// # Tool: update_index
//
// Rebuild the cache from the configured sync directory:
//
//	Request:
//	{
//	  "name": "update_index",
//	  "arguments": {"workers": 4}
//	}
//
//	Response:
//	{
//	  "updated": true,
//	  "repositories_scanned": 3,
//	  "packages_indexed": 14305,
//	  "packages_skipped": 0,
//	  "file_lists_stored": 14305,
//	  "duration_ms": 41873
//	}
//
// A successful update invalidates the search response cache, so queries
// issued afterwards see the new contents immediately.
//
// # MCP Client Configuration
//
// Configure in the client's MCP settings:
//
//	{
//	  "mcpServers": {
//	    "pkgdex": {
//	      "command": "/usr/local/bin/pkgdex",
//	      "args": ["serve"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// The MCP server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "query",
//	      "reason": "missing or empty"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Package cache not built yet
//   - -32002: Update already in progress
//   - -32003: Package not found
//   - -32004: Empty query
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
package mcp
