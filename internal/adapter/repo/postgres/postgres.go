// Package postgres provides PostgreSQL persistence adapters for grade jobs
// and per-task grade records. Persistence is optional: when no DATABASE_URL
// is configured the engine runs fully in memory and this package is unused.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the minimal pool surface the repos need. *pgxpool.Pool
// satisfies it; tests substitute a stub.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
