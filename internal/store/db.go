// Package store holds the SQL for each table. Reads go through the pool;
// writes and row locks take the caller's transaction so a service can
// compose several of them into one commit.
package store

import (
	"context"
	"database/sql"
)

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Getter runs single-row reads. SELECT ... FOR UPDATE callers pass a *sqlx.Tx.
type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool a store reads through.
type DB interface {
	Execer
	Getter
	Selecter
}
