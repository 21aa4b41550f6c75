package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by pools, pooled connections and
// transactions. Repositories run every statement through one.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type contextKey string

const DBConnKey contextKey = "db_conn"

// WithConn returns a context carrying q; repositories prefer it over the pool.
func WithConn(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, DBConnKey, q)
}

// ConnFromContext retrieves the connection or transaction bound to ctx, if any.
func ConnFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(DBConnKey).(Querier)
	return q
}

// Conn returns the querier bound to ctx, falling back to pool.
func Conn(ctx context.Context, pool Querier) Querier {
	if q := ConnFromContext(ctx); q != nil {
		return q
	}
	return pool
}

// Transactor runs fn inside a single unit of work.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTransactor opens transactions on a pgx pool.
type PoolTransactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{pool: pool}
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx begins a transaction (a savepoint when ctx already carries one), binds
// it to the context passed to fn, and commits when fn returns nil.
func (t *PoolTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var b beginner = t.pool
	if q, ok := ConnFromContext(ctx).(beginner); ok {
		b = q
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithConn(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NopTransactor runs fn directly. Used with in-memory repositories.
type NopTransactor struct{}

func (NopTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeForeignKey         = "23503"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

// IsExclusionViolation reports a violated exclusion constraint, such as two
// overlapping bookings for the same doctor.
func IsExclusionViolation(err error) bool { return hasCode(err, codeExclusionViolation) }

// IsForeignKeyViolation reports a reference to a missing row.
func IsForeignKeyViolation(err error) bool { return hasCode(err, codeForeignKey) }

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
