package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/justasking/pkg/fault"
)

type dataStore[T any] struct {
	db    *sqlx.DB
	hooks Hooks
	mu    sync.RWMutex
}

func NewDataStore[T any](db *sqlx.DB) Datastorer[T] {
	return &dataStore[T]{db: db}
}

// Open connects to Postgres through lib/pq.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return sqlx.ConnectContext(ctx, "postgres", dsn)
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks.PreTx = append(s.hooks.PreTx, hooks.PreTx...)
}

func (s *dataStore[T]) QueryRow(ctx context.Context, query string, args ...any) (any, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var result any

	err := row.Scan(&result)
	if err != nil {
		return nil, MapError(err)
	}

	return result, nil
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := s.db.GetContext(ctx, &result, query, args...); err != nil {
		return nil, MapError(err)
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	var results []T

	if err := s.db.SelectContext(ctx, &results, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, err
	}

	return results, nil
}

func (s *dataStore[T]) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return MapError(err)
	}
	return nil
}

func (s *dataStore[T]) Tx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = MapError(tx.Commit())
		}
	}()

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()

	for _, hook := range hooks.PreTx {
		if err = hook(ctx, tx); err != nil {
			return MapError(err)
		}
	}

	if err = fn(tx); err != nil {
		return MapError(err)
	}

	return nil
}

// MapError translates driver errors into fault sentinels.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fault.ErrUniqueViolation
		case "23503": // foreign_key_violation
			return fault.ErrForeignKeyViolation
		}
	}
	return err
}
