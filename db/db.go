package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"easybid/internal/apperr"
	"easybid/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage implements store.Store on PostgreSQL.
type Storage struct {
	queries
	db *sqlx.DB
}

var _ store.Store = (*Storage)(nil)

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{queries: queries{ext: db}, db: db}
}

// InTx begins a transaction, runs fn with a transactional handle and then
// commits on success or rolls back on error/panic. Panics are rethrown.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, queries{ext: tx})
}

// queries runs every statement against either the pool or a transaction.
type queries struct {
	ext sqlx.ExtContext
}

const pqUniqueViolation = "23505"

// wrapErr turns driver errors into the apperr kinds the services branch on.
func wrapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return apperr.Conflict("%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// expectOne maps "no rows affected" to a not found error.
func expectOne(what string, res sql.Result, err error) error {
	if err != nil {
		return wrapErr(what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(what, err)
	}
	if n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}
