package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Hooks run inside the transaction opened by Tx, before the caller's work.
type Hooks struct {
	PreTx []func(ctx context.Context, tx *sqlx.Tx) error
}

type Datastorer[T any] interface {
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// Exec runs a single statement outside any transaction.
	Exec(ctx context.Context, query string, args ...any) error

	// Tx runs fn in a transaction, committing only when fn and every hook
	// succeed.
	Tx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	// Set hooks.
	SetHooks(hooks Hooks)
}
