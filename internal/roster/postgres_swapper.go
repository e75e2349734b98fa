package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSwapper implements Swapper using pgxpool.
type PostgresSwapper struct {
	pool *pgxpool.Pool
}

// NewSwapper creates a new Swapper backed by the given connection pool.
func NewSwapper(pool *pgxpool.Pool) Swapper {
	return &PostgresSwapper{pool: pool}
}

// Swap moves the assignment at FromSlot into ToSlot inside one transaction.
// Both rows are locked FOR UPDATE; a displaced occupant is parked at the
// negated slot while the mover takes its place, then restored to the old
// source slot. Concurrent swaps over the same slots serialize on the row
// locks, so the (kind, day, shift, slot) uniqueness over slot > 0 always
// holds at commit.
func (r *PostgresSwapper) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	source, err := lockSlot(ctx, tx, req, req.FromSlot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking source slot: %w", err)
	}

	var displaced *Assignment
	dest, err := lockSlot(ctx, tx, req, req.ToSlot)
	switch {
	case err == nil:
		displaced = dest
	case errors.Is(err, pgx.ErrNoRows):
		// Destination slot is free.
	default:
		return nil, fmt.Errorf("locking destination slot: %w", err)
	}

	if displaced != nil {
		// Park the occupant outside the uniqueness domain before the mover
		// claims its slot.
		if err := setSlot(ctx, tx, displaced.ID, int(-displaced.ID)); err != nil {
			return nil, fmt.Errorf("parking displaced assignment: %w", err)
		}
	}

	if err := setSlot(ctx, tx, source.ID, req.ToSlot); err != nil {
		return nil, fmt.Errorf("moving assignment: %w", err)
	}

	if displaced != nil {
		if err := setSlot(ctx, tx, displaced.ID, req.FromSlot); err != nil {
			return nil, fmt.Errorf("restoring displaced assignment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing swap: %w", err)
	}

	result := &SwapResult{Moved: *source}
	result.Moved.Slot = req.ToSlot
	if displaced != nil {
		d := *displaced
		d.Slot = req.FromSlot
		result.Displaced = &d
	}
	return result, nil
}

func lockSlot(ctx context.Context, tx pgx.Tx, req SwapRequest, slot int) (*Assignment, error) {
	query := `
		SELECT id, kind, day, shift, slot, person, phone, updated_at
		FROM roster_assignments
		WHERE kind = $1 AND day = $2 AND shift = $3 AND slot = $4
		FOR UPDATE`

	var a Assignment
	err := tx.QueryRow(ctx, query, req.Kind, req.Day, req.Shift, slot).Scan(
		&a.ID, &a.Kind, &a.Day, &a.Shift, &a.Slot, &a.Person, &a.Phone, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func setSlot(ctx context.Context, tx pgx.Tx, id int64, slot int) error {
	_, err := tx.Exec(ctx,
		`UPDATE roster_assignments SET slot = $1, updated_at = NOW() WHERE id = $2`,
		slot, id)
	return err
}
