package providers

import "context"

// WebSearcher runs a text web search and returns the results as opaque
// evidence text.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}
