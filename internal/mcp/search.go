package mcp

import (
	"context"
	"regexp"
	"strings"
)

// Context7 tool names. The server may evolve; anything it returns is
// still treated as opaque text.
const (
	toolResolveLibrary = "resolve-library-id"
	toolLibraryDocs    = "get-library-docs"
)

// libraryIDPattern matches Context7-compatible library IDs such as
// /vercel/next.js or /mongodb/docs.
var libraryIDPattern = regexp.MustCompile(`/[\w.-]+/[\w.-]+`)

// Search runs the retrieval pipeline for one query: resolve the query to
// a library, then fetch its documentation. The client must be started.
// Results may be empty; that is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	resolved, err := c.CallTool(ctx, toolResolveLibrary, map[string]any{
		"libraryName": query,
	})
	if err != nil {
		return nil, err
	}

	id := libraryIDPattern.FindString(resolved)
	if id == "" {
		// No library matched. The resolution text itself is sometimes a
		// usable answer (a "did you mean" list); surface it as-is.
		if strings.TrimSpace(resolved) == "" {
			return nil, nil
		}
		return []Result{{Content: resolved, Type: "text", Source: toolResolveLibrary}}, nil
	}

	docs, err := c.CallTool(ctx, toolLibraryDocs, map[string]any{
		"context7CompatibleLibraryID": id,
		"topic":                       query,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(docs) == "" {
		return nil, nil
	}

	return []Result{{
		Title:   id,
		Content: docs,
		Type:    "md",
		Source:  id,
	}}, nil
}
