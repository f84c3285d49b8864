package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

// Schema maps a record type onto a table. Every table carries the meta
// columns id, owner_id, created_at, updated_at and deleted_at; ParentColumn
// names the foreign key holding Meta.ParentID, if any.
type Schema[T lifecycle.Record] struct {
	Table        string
	ParentColumn string
	ParentTable  string
	// Columns lists the content columns in the order of Fields and Values.
	Columns []string
	New     func() T
	// Fields returns scan destinations for Columns.
	Fields func(T) []any
	// Values returns the values written for Columns.
	Values func(T) []any
	// InsertOnly names content columns that Update leaves alone because
	// other statements own them, such as counters.
	InsertOnly []string
	// Conflicts maps unique constraint names to a readable reason.
	Conflicts map[string]string
}

// Table is a lifecycle.Store backed by one PostgreSQL table.
type Table[T lifecycle.Record] struct {
	repo   *Repository
	schema Schema[T]
	cols   string
}

// NewTable creates a Table for s.
func NewTable[T lifecycle.Record](repo *Repository, s Schema[T]) *Table[T] {
	return &Table[T]{
		repo:   repo,
		schema: s,
		cols:   strings.Join(s.allColumns(), ", "),
	}
}

// InTx runs fn inside a database transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (t *Table[T]) InTx(ctx context.Context, fn func(ctx context.Context, tx lifecycle.Tx[T]) error) error {
	return pgx.BeginFunc(ctx, t.repo.pool, func(tx pgx.Tx) error {
		return fn(ctx, &tableTx[T]{t: t, tx: tx})
	})
}

func (s Schema[T]) metaColumns() []string {
	cols := []string{"id", "owner_id", "created_at", "updated_at", "deleted_at"}
	if s.ParentColumn != "" {
		cols = append(cols, s.ParentColumn)
	}
	return cols
}

func (s Schema[T]) allColumns() []string {
	return append(s.metaColumns(), s.Columns...)
}

type tableTx[T lifecycle.Record] struct {
	t  *Table[T]
	tx pgx.Tx
}

func (x *tableTx[T]) Insert(ctx context.Context, rec T) error {
	s := x.t.schema
	args := append(metaValues(s, rec.ResourceMeta()), s.Values(rec)...)

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, s.Table, x.t.cols, placeholders(1, len(args)))
	if _, err := x.tx.Exec(ctx, query, args...); err != nil {
		return x.t.translate(err, "insert")
	}
	return nil
}

func (x *tableTx[T]) Get(ctx context.Context, id string) (T, error) {
	s := x.t.schema
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, x.t.cols, s.Table)

	rec, err := x.t.scan(x.tx.QueryRow(ctx, query, id))
	if err != nil {
		var zero T
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, lifecycle.ErrNotFound
		}
		return zero, fmt.Errorf("failed to get %s: %w", s.Table, err)
	}
	return rec, nil
}

// Update rewrites updated_at, deleted_at and the content columns not
// listed in InsertOnly, then reloads rec from the stored row.
func (x *tableTx[T]) Update(ctx context.Context, rec T) error {
	s := x.t.schema
	meta := rec.ResourceMeta()

	sets := []string{"updated_at = $2", "deleted_at = $3"}
	args := []any{meta.ID, meta.UpdatedAt, meta.DeletedAt}
	values := s.Values(rec)
	for i, col := range s.Columns {
		if slices.Contains(s.InsertOnly, col) {
			continue
		}
		args = append(args, values[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING %s`, s.Table, strings.Join(sets, ", "), x.t.cols)
	if err := x.t.scanInto(x.tx.QueryRow(ctx, query, args...), rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lifecycle.ErrNotFound
		}
		return x.t.translate(err, "update")
	}
	return nil
}

func (x *tableTx[T]) Remove(ctx context.Context, id string) error {
	s := x.t.schema
	result, err := x.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.Table), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.Table, err)
	}
	if result.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

func (x *tableTx[T]) ParentExists(ctx context.Context, id string) (bool, error) {
	s := x.t.schema
	if s.ParentTable == "" {
		return false, nil
	}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND deleted_at IS NULL)`, s.ParentTable)

	var exists bool
	if err := x.tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", s.ParentTable, err)
	}
	return exists, nil
}

func (x *tableTx[T]) Page(ctx context.Context, q lifecycle.Query, after string, limit int) ([]T, error) {
	s := x.t.schema
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id > $1`, x.t.cols, s.Table)
	args := []any{after}
	argIndex := 2

	if q.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, q.OwnerID)
		argIndex++
	}
	if q.ParentID != "" && s.ParentColumn != "" {
		query += fmt.Sprintf(" AND %s = $%d", s.ParentColumn, argIndex)
		args = append(args, q.ParentID)
		argIndex++
	}
	if !q.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if q.LiveParent && s.ParentTable != "" {
		query += fmt.Sprintf(" AND (%[1]s IS NULL OR EXISTS (SELECT 1 FROM %[2]s p WHERE p.id = %[3]s.%[1]s AND p.deleted_at IS NULL))",
			s.ParentColumn, s.ParentTable, s.Table)
	}
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := x.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := x.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.Table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", s.Table, err)
	}
	return out, nil
}

// scan reads one row in allColumns order.
func (t *Table[T]) scan(row pgx.Row) (T, error) {
	rec := t.schema.New()
	if err := t.scanInto(row, rec); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (t *Table[T]) scanInto(row pgx.Row, rec T) error {
	meta := rec.ResourceMeta()

	var (
		ownerID  *string
		parentID *string
		deleted  *time.Time
	)
	dest := []any{&meta.ID, &ownerID, &meta.CreatedAt, &meta.UpdatedAt, &deleted}
	if t.schema.ParentColumn != "" {
		dest = append(dest, &parentID)
	}
	dest = append(dest, t.schema.Fields(rec)...)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	meta.OwnerID = deref(ownerID)
	meta.ParentID = deref(parentID)
	meta.CreatedAt = meta.CreatedAt.UTC()
	meta.UpdatedAt = meta.UpdatedAt.UTC()
	if deleted != nil {
		d := deleted.UTC()
		meta.DeletedAt = &d
	}
	return nil
}

// translate maps unique violations onto lifecycle.ErrConflict and
// oversized values onto lifecycle.ErrValidation.
func (t *Table[T]) translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			reason, ok := t.schema.Conflicts[pgErr.ConstraintName]
			if !ok {
				reason = t.schema.Table + " already exists"
			}
			return fmt.Errorf("%s: %w", reason, lifecycle.ErrConflict)
		case valueTooLong:
			return fmt.Errorf("%s: %w", pgErr.Message, lifecycle.ErrValidation)
		}
	}
	return fmt.Errorf("failed to %s %s: %w", op, t.schema.Table, err)
}

func metaValues[T lifecycle.Record](s Schema[T], meta *lifecycle.Meta) []any {
	vals := []any{meta.ID, nullable(meta.OwnerID), meta.CreatedAt, meta.UpdatedAt, meta.DeletedAt}
	if s.ParentColumn != "" {
		vals = append(vals, nullable(meta.ParentID))
	}
	return vals
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
