package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// List retrieves all rows of the table ordered by the schema's default
// ordering, falling back to most-recently-updated first.
func (st *PostgresStore) List(ctx context.Context, s *Schema) ([]Row, error) {
	order := s.DefaultOrder
	if order == "" {
		order = "updated_at DESC"
	}

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s`, s.Table, order)

	rows, err := st.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.Table, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := collectRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", s.Table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", s.Table, err)
	}

	return out, nil
}

// Insert creates a row from exactly the supplied columns and returns it.
func (st *PostgresStore) Insert(ctx context.Context, s *Schema, fields Row) (Row, error) {
	cols, err := checkColumns(s, fields)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[c]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		s.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	row, err := st.queryOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", s.Table, mapPgError(err))
	}
	return row, nil
}

// Update fetches the current row, applies exactly the supplied columns plus
// a server-assigned updated_at, and returns both images.
func (st *PostgresStore) Update(ctx context.Context, s *Schema, id any, patch Row) (Row, Row, error) {
	// Client-keyed tables take "id" on create only; a patch must never
	// rename the row out from under its audit trail.
	if _, ok := patch["id"]; ok && s.IDKind == IDKey {
		return nil, nil, ErrImmutableID
	}

	cols, err := checkColumns(s, patch)
	if err != nil {
		return nil, nil, err
	}

	before, err := st.fetch(ctx, s, id)
	if err != nil {
		return nil, nil, err
	}

	setClauses := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	argIdx := 1
	for _, c := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", c, argIdx))
		args = append(args, patch[c])
		argIdx++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING *`,
		s.Table, strings.Join(setClauses, ", "), argIdx)

	after, err := st.queryOne(ctx, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row deleted between fetch and update.
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("updating %s: %w", s.Table, mapPgError(err))
	}

	return before, after, nil
}

// Delete removes the row and returns its pre-image.
func (st *PostgresStore) Delete(ctx context.Context, s *Schema, id any) (Row, error) {
	before, err := st.fetch(ctx, s, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.Table)
	result, err := st.pool.Exec(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("deleting from %s: %w", s.Table, err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return before, nil
}

func (st *PostgresStore) fetch(ctx context.Context, s *Schema, id any) (Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, s.Table)
	row, err := st.queryOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching from %s: %w", s.Table, err)
	}
	return row, nil
}

func (st *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := st.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	row, err := collectRow(rows)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

// checkColumns validates every payload key against the schema allowlist and
// returns the keys in deterministic order. Unknown keys are rejected, never
// interpolated.
func checkColumns(s *Schema, fields Row) ([]string, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyPayload
	}

	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !s.HasColumn(c) {
			return nil, &UnknownColumnError{Column: c}
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func collectRow(rows pgx.Rows) (Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	row := make(Row, len(fields))
	for i, fd := range fields {
		row[fd.Name] = values[i]
	}
	return row, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514":
			return ErrConflict
		}
	}
	return err
}
