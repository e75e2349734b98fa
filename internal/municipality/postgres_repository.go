package municipality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// EnsureByName finds or creates a municipality by case-insensitive name.
// Two concurrent creations of a brand-new name can both miss the lookup;
// the unique index on lower(name) makes one insert fail with 23505, and the
// loser re-fetches the winner's row.
func (r *PostgresRepository) EnsureByName(ctx context.Context, name string) (*Municipality, error) {
	name = strings.TrimSpace(name)

	m, err := r.getByName(ctx, name)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	query := `
		INSERT INTO municipalities (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at`

	var created Municipality
	err = r.pool.QueryRow(ctx, query, name).Scan(
		&created.ID, &created.Name, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return r.getByName(ctx, name)
		}
		return nil, fmt.Errorf("inserting municipality: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a single municipality by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Municipality, error) {
	query := `SELECT id, name, created_at, updated_at FROM municipalities WHERE id = $1`

	var m Municipality
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying municipality: %w", err)
	}
	return &m, nil
}

func (r *PostgresRepository) getByName(ctx context.Context, name string) (*Municipality, error) {
	query := `SELECT id, name, created_at, updated_at FROM municipalities WHERE lower(name) = lower($1)`

	var m Municipality
	err := r.pool.QueryRow(ctx, query, name).Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying municipality by name: %w", err)
	}
	return &m, nil
}

// UpsertStatus inserts or updates the status row for (day, municipality).
func (r *PostgresRepository) UpsertStatus(ctx context.Context, municipalityID uuid.UUID, su StatusUpsert) (*Status, error) {
	query := `
		INSERT INTO municipality_status (day, municipality_id, coc_open, phone, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (day, municipality_id)
		DO UPDATE SET coc_open = EXCLUDED.coc_open,
		              phone = EXCLUDED.phone,
		              notes = EXCLUDED.notes,
		              updated_at = NOW()
		RETURNING id, day, municipality_id, coc_open, phone, notes, updated_at`

	var s Status
	err := r.pool.QueryRow(ctx, query,
		su.Day, municipalityID, su.COCOpen, su.Phone, su.Notes,
	).Scan(&s.ID, &s.Day, &s.MunicipalityID, &s.COCOpen, &s.Phone, &s.Notes, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting municipality status: %w", err)
	}
	return &s, nil
}

// ListStatus retrieves status rows joined with their municipality names,
// optionally filtered by day.
func (r *PostgresRepository) ListStatus(ctx context.Context, day string) ([]Status, error) {
	query := `
		SELECT s.id, s.day, s.municipality_id, m.name, s.coc_open, s.phone, s.notes, s.updated_at
		FROM municipality_status s
		JOIN municipalities m ON m.id = s.municipality_id
		WHERE ($1 = '' OR s.day = $1)
		ORDER BY s.day ASC, m.name ASC`

	rows, err := r.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("listing municipality status: %w", err)
	}
	defer rows.Close()

	statuses := []Status{}
	for rows.Next() {
		var s Status
		err := rows.Scan(&s.ID, &s.Day, &s.MunicipalityID, &s.Municipality,
			&s.COCOpen, &s.Phone, &s.Notes, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status rows: %w", err)
	}

	return statuses, nil
}

// ReplaceContacts deletes the municipality's contact list and inserts the
// supplied one inside a single transaction.
func (r *PostgresRepository) ReplaceContacts(ctx context.Context, municipalityID uuid.UUID, contacts []Contact) ([]Contact, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM municipalities WHERE id = $1)`, municipalityID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking municipality existence: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM municipality_contacts WHERE municipality_id = $1`, municipalityID); err != nil {
		return nil, fmt.Errorf("clearing contacts: %w", err)
	}

	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		query := `
			INSERT INTO municipality_contacts (municipality_id, name, role, phone, email)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`

		c.MunicipalityID = municipalityID
		if err := tx.QueryRow(ctx, query, municipalityID, c.Name, c.Role, c.Phone, c.Email).Scan(&c.ID); err != nil {
			return nil, fmt.Errorf("inserting contact: %w", err)
		}
		out = append(out, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing contact replacement: %w", err)
	}

	return out, nil
}

// ListContacts retrieves the municipality's contact list.
func (r *PostgresRepository) ListContacts(ctx context.Context, municipalityID uuid.UUID) ([]Contact, error) {
	query := `
		SELECT id, municipality_id, name, role, phone, email
		FROM municipality_contacts
		WHERE municipality_id = $1
		ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, municipalityID)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.MunicipalityID, &c.Name, &c.Role, &c.Phone, &c.Email); err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact rows: %w", err)
	}

	return contacts, nil
}
