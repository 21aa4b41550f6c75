package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSchema reports whether name is safe to splice into DDL.
func ValidSchema(name string) bool {
	return len(name) <= 63 && schemaPattern.MatchString(name)
}

// CreateSchema creates schema if needed and applies all migrations from
// migrationsDir to it. An empty migrationsDir skips migrations.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, schema, migrationsDir string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema name: %q", schema)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		if _, err := NewMigrator(pool, migrationsDir).Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}
	return nil
}

// DropSchema removes schema and everything in it.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema name: %q", schema)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	return nil
}
