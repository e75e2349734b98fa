package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresLog implements Recorder and Reader against the audit_log table.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewLog creates a new PostgresLog backed by the given connection pool.
func NewLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Record inserts an audit entry. Any failure, including snapshot
// serialization, is logged and swallowed so the triggering request is
// unaffected.
func (l *PostgresLog) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	before, err := marshalSnapshot(e.Before)
	if err != nil {
		slog.Error("audit: failed to serialize before snapshot", "error", err, "entity", e.EntityKind)
		return
	}
	after, err := marshalSnapshot(e.After)
	if err != nil {
		slog.Error("audit: failed to serialize after snapshot", "error", err, "entity", e.EntityKind)
		return
	}
	metadata, err := marshalSnapshot(e.Metadata)
	if err != nil {
		slog.Error("audit: failed to serialize metadata", "error", err, "entity", e.EntityKind)
		return
	}

	query := `
		INSERT INTO audit_log (id, at, actor_id, actor_email, actor_role,
		                       section, entity_kind, entity_id, action, summary,
		                       before, after, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = l.pool.Exec(ctx, query,
		e.ID, e.At, e.ActorID, e.ActorEmail, e.ActorRole,
		e.Section, e.EntityKind, e.EntityID, e.Action, e.Summary,
		before, after, metadata,
	)
	if err != nil {
		slog.Error("audit: failed to record entry", "error", err,
			"section", e.Section, "entity", e.EntityKind, "action", e.Action)
	}
}

// List retrieves audit entries, newest first, optionally filtered by
// section and action. Limit defaults to 200 and is capped at 1000.
func (l *PostgresLog) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit < 1 {
		f.Limit = 200
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}

	query := `
		SELECT id, at, actor_id, actor_email, actor_role,
		       section, entity_kind, entity_id, action, summary,
		       before, after, metadata
		FROM audit_log
		WHERE ($1 = '' OR section = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY id DESC
		LIMIT $3`

	rows, err := l.pool.Query(ctx, query, f.Section, f.Action, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var before, after, metadata []byte
		err := rows.Scan(
			&e.ID, &e.At, &e.ActorID, &e.ActorEmail, &e.ActorRole,
			&e.Section, &e.EntityKind, &e.EntityID, &e.Action, &e.Summary,
			&before, &after, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if e.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, fmt.Errorf("decoding before snapshot: %w", err)
		}
		if e.After, err = unmarshalSnapshot(after); err != nil {
			return nil, fmt.Errorf("decoding after snapshot: %w", err)
		}
		if e.Metadata, err = unmarshalSnapshot(metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return entries, nil
}

func marshalSnapshot(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalSnapshot(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
