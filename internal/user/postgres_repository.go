package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubarr/kubarr/internal/db"
)

const selectColumns = `
	SELECT id, username, email, password_hash, is_active, is_approved, is_admin,
	       created_at, updated_at
	FROM users`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Insert adds u through q, which may be a transaction. It fills ID and timestamps.
func Insert(ctx context.Context, q db.Querier, u *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, is_active, is_approved, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.IsActive,
		u.IsApproved,
		u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Create inserts a new user record.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	return Insert(ctx, r.pool, u)
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanOne(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
}

// GetByUsername retrieves a single user by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanOne(r.pool.QueryRow(ctx, selectColumns+` WHERE username = $1`, username))
}

// List retrieves all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at ASC`)
}

// ListPending retrieves users awaiting approval.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]User, error) {
	return r.list(ctx, selectColumns+` WHERE is_approved = FALSE ORDER BY created_at ASC`)
}

// SetApproved updates the approval flag and returns the updated user.
func (r *PostgresRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) (*User, error) {
	return scanOne(r.pool.QueryRow(ctx, `
		UPDATE users SET is_approved = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, username, email, password_hash, is_active, is_approved, is_admin,
		          created_at, updated_at`, id, approved))
}

// SetActive updates the active flag and returns the updated user.
func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	return scanOne(r.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, username, email, password_hash, is_active, is_approved, is_admin,
		          created_at, updated_at`, id, active))
}

// DeleteUnapproved removes a user that has not been approved yet.
// Returns ErrUserNotFound if the user does not exist and ErrAlreadyApproved
// if the user was approved.
func (r *PostgresRepository) DeleteUnapproved(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND is_approved = FALSE`, id)
	if err != nil {
		return fmt.Errorf("rejecting user: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking user existence: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrAlreadyApproved
	}

	return nil
}

// Delete removes a user record.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAdmins returns the number of users with the legacy admin flag or the admin role.
func (r *PostgresRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		WHERE u.is_admin = TRUE OR r.name = 'admin'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]User, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := scanInto(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

func scanOne(row pgx.Row) (*User, error) {
	var u User
	if err := scanInto(row, &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func scanInto(row pgx.Row, u *User) error {
	return row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsActive, &u.IsApproved, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt,
	)
}
