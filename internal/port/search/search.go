// Package search defines the web search port. The implementation is an
// external collaborator; the executor only consumes this interface.
package search

import (
	"context"

	"github.com/openworkhq/agentgate/internal/domain/toolcall"
)

// Searcher is the port interface for web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]toolcall.SearchResult, error)
}
