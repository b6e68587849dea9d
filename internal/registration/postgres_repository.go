package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubarr/kubarr/internal/db"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/user"
)

const inviteColumns = `id, code, created_by_id, used_by_id, expires_at, is_used, created_at, used_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// CreateInvite inserts a new invite and populates server-generated fields.
func (r *PostgresRepository) CreateInvite(ctx context.Context, inv *Invite) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invites (code, created_by_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		inv.Code, inv.CreatedByID, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting invite: %w", err)
	}
	return nil
}

// GetInviteByCode retrieves an invite by its code.
func (r *PostgresRepository) GetInviteByCode(ctx context.Context, code string) (*Invite, error) {
	return scanInvite(r.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE code = $1`, code))
}

// ListInvites retrieves all invites, newest first.
func (r *PostgresRepository) ListInvites(ctx context.Context) ([]Invite, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inviteColumns+` FROM invites ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing invites: %w", err)
	}
	defer rows.Close()

	invites := []Invite{}
	for rows.Next() {
		var inv Invite
		if err := scanInviteInto(rows, &inv); err != nil {
			return nil, fmt.Errorf("scanning invite row: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invite rows: %w", err)
	}
	return invites, nil
}

// DeleteInvite removes an unused invite.
func (r *PostgresRepository) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	var isUsed bool
	err := r.pool.QueryRow(ctx, `
		WITH target AS (SELECT id, is_used FROM invites WHERE id = $1),
		     deleted AS (DELETE FROM invites WHERE id = $1 AND is_used = FALSE RETURNING id)
		SELECT is_used FROM target`, id).Scan(&isUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("deleting invite: %w", err)
	}
	if isUsed {
		return ErrInviteUsed
	}
	return nil
}

// CreateUser inserts the user, assigns its default role and consumes the invite atomically.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *user.User, defaultRole, inviteCode string, now time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var inv *Invite
		if inviteCode != "" {
			locked, err := scanInvite(tx.QueryRow(ctx,
				`SELECT `+inviteColumns+` FROM invites WHERE code = $1 FOR UPDATE`, inviteCode))
			if err != nil {
				if errors.Is(err, ErrInviteNotFound) {
					return ErrInvalidInvite
				}
				return err
			}
			if !locked.Usable(now) {
				return ErrInvalidInvite
			}
			inv = locked
		}

		if err := user.Insert(ctx, tx, u); err != nil {
			return err
		}
		if defaultRole != "" {
			if err := rbac.AssignByName(ctx, tx, u.ID, defaultRole); err != nil {
				return err
			}
		}

		if inv != nil {
			_, err := tx.Exec(ctx, `
				UPDATE invites SET is_used = TRUE, used_by_id = $2, used_at = $3
				WHERE id = $1`, inv.ID, u.ID, now)
			if err != nil {
				return fmt.Errorf("consuming invite: %w", err)
			}
		}
		return nil
	})
}

func scanInvite(row pgx.Row) (*Invite, error) {
	var inv Invite
	if err := scanInviteInto(row, &inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("querying invite: %w", err)
	}
	return &inv, nil
}

func scanInviteInto(row pgx.Row, inv *Invite) error {
	return row.Scan(&inv.ID, &inv.Code, &inv.CreatedByID, &inv.UsedByID,
		&inv.ExpiresAt, &inv.IsUsed, &inv.CreatedAt, &inv.UsedAt)
}
