// Package store holds typed queries over the fetch ledger tables.
// Callers depend on the Querier interface; *Queries is the SQLite-backed
// implementation.
package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Querier is the full set of ledger queries.
type Querier interface {
	CreateRun(ctx context.Context, arg CreateRunParams) error
	FinishRun(ctx context.Context, arg FinishRunParams) error
	GetRun(ctx context.Context, id string) (Run, error)
	InsertFetch(ctx context.Context, arg InsertFetchParams) error
	ListFetchesByRun(ctx context.Context, runID string) ([]Fetch, error)
	CountFetchesByRun(ctx context.Context, runID string) (CountFetchesByRunRow, error)
}

// Compile-time assertion: *Queries implements Querier.
var _ Querier = (*Queries)(nil)

// Queries runs ledger queries against a DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}
