package accessrequest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsboard/opsboard/internal/auth"
)

const requestColumns = `id, name, email, organization, password_hash, status, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new pending request. A live (pending or approved)
// request for the same email is a conflict.
func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM access_requests
			WHERE email = lower($1) AND status IN ($2, $3)
		)`, req.Email, StatusPending, StatusApproved).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking existing requests: %w", err)
	}
	if exists {
		return ErrDuplicateEmail
	}

	query := fmt.Sprintf(`
		INSERT INTO access_requests (name, email, organization, password_hash, status)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING %s`, requestColumns)

	err = scanRequest(r.pool.QueryRow(ctx, query,
		req.Name, req.Email, req.Organization, req.PasswordHash, StatusPending,
	), req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting access request: %w", err)
	}

	return nil
}

// GetByID retrieves a single request by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM access_requests WHERE id = $1`, requestColumns)

	var req Request
	if err := scanRequest(r.pool.QueryRow(ctx, query, id), &req); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying access request: %w", err)
	}
	return &req, nil
}

// List retrieves all requests, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM access_requests ORDER BY created_at DESC`, requestColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing access requests: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		var req Request
		if err := scanRequest(rows, &req); err != nil {
			return nil, fmt.Errorf("scanning access request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access request rows: %w", err)
	}

	return requests, nil
}

// Approve transitions a pending request to approved and creates the viewer
// account it spawns, all in one transaction.
func (r *PostgresRepository) Approve(ctx context.Context, id uuid.UUID) (*Request, *auth.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := transition(ctx, tx, id, StatusPending, StatusApproved)
	if err != nil {
		return nil, nil, err
	}

	u := &auth.User{
		Email:           req.Email,
		PasswordHash:    req.PasswordHash,
		Name:            req.Name,
		Role:            auth.RoleViewer,
		Active:          true,
		AccessRequestID: &req.ID,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, active, access_request_id)
		VALUES (lower($1), $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.Name, u.Role, u.Active, u.AccessRequestID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, auth.ErrDuplicateEmail
		}
		return nil, nil, fmt.Errorf("creating user for approved request: %w", err)
	}
	u.Email = strings.ToLower(u.Email)

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing approval: %w", err)
	}

	return req, u, nil
}

// Reject transitions a pending request to rejected.
func (r *PostgresRepository) Reject(ctx context.Context, id uuid.UUID) (*Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := transition(ctx, tx, id, StatusPending, StatusRejected)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing rejection: %w", err)
	}
	return req, nil
}

// Revoke transitions an approved request to revoked and deactivates the
// linked account so its outstanding tokens stop working on the next
// request.
func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) (*Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := transition(ctx, tx, id, StatusApproved, StatusRevoked)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET active = false, updated_at = NOW()
		WHERE access_request_id = $1 AND active`, req.ID)
	if err != nil {
		return nil, fmt.Errorf("deactivating spawned user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing revocation: %w", err)
	}
	return req, nil
}

// transition moves a request from one status to another, failing with
// ErrProcessed when the row exists but is not in the required status.
func transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (*Request, error) {
	query := fmt.Sprintf(`
		UPDATE access_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING %s`, requestColumns)

	var req Request
	err := scanRequest(tx.QueryRow(ctx, query, to, id, from), &req)
	if err == nil {
		return &req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating access request status: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM access_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking access request existence: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrProcessed
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, req *Request) error {
	return row.Scan(
		&req.ID, &req.Name, &req.Email, &req.Organization,
		&req.PasswordHash, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
}
