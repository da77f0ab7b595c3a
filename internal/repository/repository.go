// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vinovest/sqlx"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row.
	ErrConflict = errors.New("record changed concurrently")
)

// querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository wraps sqlx for database operations. A Repository returned by
// WithTx routes every query through the transaction.
type Repository struct {
	db *sqlx.DB
	q  querier
}

// New creates a new Repository instance
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, q: db}
}

// DB returns the underlying sqlx DB for direct access
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// WithTx runs fn with a repository bound to a new transaction. The
// transaction commits when fn returns nil and rolls back on error or panic.
// Calls on a repository that is already transactional join the outer one.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) (err error) {
	if _, ok := r.q.(*sqlx.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
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

	return fn(&Repository{db: r.db, q: tx})
}

// wrapError converts sql.ErrNoRows into ErrNotFound, keeping the original in
// the chain.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// expectOne returns ErrConflict unless exactly one row was affected.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}
