// Package migrations embeds the SQL schema and applies it in version order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Migration is one numbered schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// All returns every embedded migration ordered by version.
func All() ([]Migration, error) {
	entries, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(entries))
	for _, upPath := range entries {
		base := strings.TrimSuffix(upPath, ".up.sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("malformed migration file name %q", upPath)
		}
		v, err := strconv.Atoi(version)
		if err != nil {
			return nil, fmt.Errorf("malformed migration version %q: %w", upPath, err)
		}

		up, err := files.ReadFile(upPath)
		if err != nil {
			return nil, err
		}
		down, err := files.ReadFile(base + ".down.sql")
		if err != nil {
			return nil, fmt.Errorf("missing down migration for %s: %w", base, err)
		}

		out = append(out, Migration{Version: v, Name: name, Up: string(up), Down: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Up applies every migration not yet recorded in schema_migrations. Each
// migration runs in its own transaction.
func Up(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	all, err := All()
	if err != nil {
		return 0, err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range all {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			var done bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done); err != nil {
				return err
			}
			if done {
				return nil
			}
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
				return err
			}
			applied++
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %06d_%s: %w", m.Version, m.Name, err)
		}
	}

	return applied, nil
}

// Reset runs the down then up script of the named migration, leaving its
// tables empty.
func Reset(ctx context.Context, pool *pgxpool.Pool, name string) error {
	all, err := All()
	if err != nil {
		return err
	}

	for _, m := range all {
		if m.Name != name {
			continue
		}
		if _, err := pool.Exec(ctx, m.Down); err != nil {
			return fmt.Errorf("apply %s down migration: %w", name, err)
		}
		if _, err := pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("apply %s up migration: %w", name, err)
		}
		return nil
	}

	return fmt.Errorf("unknown migration %q", name)
}
