// Package client defines the remote-service contracts the migration
// engine consumes, and a REST implementation of them.
package client

import (
	"context"
	"errors"

	"github.com/recmig/recmig/internal/types"
)

// ErrNotFound marks a describe miss, as opposed to a transport
// failure. The describer uses it to drive namespace fallback.
var ErrNotFound = errors.New("object not found")

// SchemaClient fetches object schemas from an instance
type SchemaClient interface {
	Describe(ctx context.Context, name string) (*types.ObjectDescription, error)
}

// SaveResult is the per-record outcome of a batch create. Results are
// positional with the submitted records.
type SaveResult struct {
	Success bool     `json:"success"`
	ID      string   `json:"id"`
	Errors  []string `json:"errors,omitempty"`
}

// DataClient queries and creates records on an instance
type DataClient interface {
	// Query runs a SOQL statement and returns at most maxFetchSize
	// rows, paging eagerly until the cap or the end of the result set.
	Query(ctx context.Context, soql string, maxFetchSize int) ([]types.Row, error)
	// Create submits one batch of records for a single object
	Create(ctx context.Context, object string, records []types.Record) ([]SaveResult, error)
}

// Client is the full surface a live instance offers
type Client interface {
	SchemaClient
	DataClient
}
