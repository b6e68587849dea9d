package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubarr/kubarr/internal/db"
)

const roleColumns = `
	SELECT r.id, r.name, r.description, r.is_system, r.created_at,
	       COALESCE(array_agg(p.app_name ORDER BY p.app_name) FILTER (WHERE p.app_name IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_app_permissions p ON p.role_id = r.id`

const roleGroupBy = ` GROUP BY r.id`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// List retrieves all roles with their apps, ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Role, error) {
	return r.queryRoles(ctx, roleColumns+roleGroupBy+` ORDER BY r.name ASC`)
}

// GetByID retrieves a single role by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx, roleColumns+` WHERE r.id = $1`+roleGroupBy, id))
}

// GetByName retrieves a single role by name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx, roleColumns+` WHERE r.name = $1`+roleGroupBy, name))
}

// Create inserts a role and its app permissions.
func (r *PostgresRepository) Create(ctx context.Context, role *Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, description, is_system)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			role.Name, role.Description, role.IsSystem,
		).Scan(&role.ID, &role.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateRole
			}
			return fmt.Errorf("inserting role: %w", err)
		}
		return replaceApps(ctx, tx, role.ID, role.Apps)
	})
}

// Update applies non-nil fields to the role.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Role, error) {
	var (
		setClauses []string
		args       []any
	)
	argIdx := 1

	if fields.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *fields.Name)
		argIdx++
	}
	if fields.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *fields.Description)
		argIdx++
	}

	if len(setClauses) > 0 {
		query := fmt.Sprintf(`UPDATE roles SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argIdx)
		args = append(args, id)

		result, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return nil, ErrDuplicateRole
			}
			return nil, fmt.Errorf("updating role: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil, ErrRoleNotFound
		}
	}

	return r.GetByID(ctx, id)
}

// Delete removes a role. Memberships and permissions cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// SetApps replaces the role's app permissions.
func (r *PostgresRepository) SetApps(ctx context.Context, roleID uuid.UUID, apps []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return fmt.Errorf("checking role existence: %w", err)
		}
		if !exists {
			return ErrRoleNotFound
		}
		return replaceApps(ctx, tx, roleID, apps)
	})
}

// EnsureSystemRole creates a built-in role with its default apps when it is
// missing and flags an existing role of that name as a system role.
func (r *PostgresRepository) EnsureSystemRole(ctx context.Context, sr SystemRole) (bool, error) {
	created := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, description, is_system)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (name) DO NOTHING
			RETURNING id`, sr.Name, sr.Description).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			_, err = tx.Exec(ctx, `UPDATE roles SET is_system = TRUE WHERE name = $1`, sr.Name)
			if err != nil {
				return fmt.Errorf("flagging system role %s: %w", sr.Name, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("inserting system role %s: %w", sr.Name, err)
		}
		created = true
		return replaceApps(ctx, tx, id, sr.Apps)
	})
	return created, err
}

// UserRoles returns the roles held by userID.
func (r *PostgresRepository) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	return r.queryRoles(ctx, roleColumns+`
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`+roleGroupBy+` ORDER BY r.name ASC`, userID)
}

// SetUserRoles replaces the memberships of userID.
func (r *PostgresRepository) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clearing user roles: %w", err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				userID, roleID); err != nil {
				return fmt.Errorf("assigning role %s: %w", roleID, err)
			}
		}
		return nil
	})
}

// Grants runs the explicit membership join used to resolve access.
func (r *PostgresRepository) Grants(ctx context.Context, userID uuid.UUID) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name, COALESCE(p.app_name, '')
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_app_permissions p ON p.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	grants := []Grant{}
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.RoleName, &g.AppName); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	return grants, nil
}

// AssignByName adds the named role to userID through q, which may be a
// transaction. Unknown role names are ignored.
func AssignByName(ctx context.Context, q db.Querier, userID uuid.UUID, roleName string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING`, userID, roleName)
	if err != nil {
		return fmt.Errorf("assigning role %s: %w", roleName, err)
	}
	return nil
}

func replaceApps(ctx context.Context, tx pgx.Tx, roleID uuid.UUID, apps []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_app_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clearing role apps: %w", err)
	}
	for _, app := range apps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_app_permissions (role_id, app_name)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, roleID, app); err != nil {
			return fmt.Errorf("granting app %s: %w", app, err)
		}
	}
	return nil
}

func (r *PostgresRepository) queryRoles(ctx context.Context, query string, args ...any) ([]Role, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var role Role
		if err := scanRoleInto(rows, &role); err != nil {
			return nil, fmt.Errorf("scanning role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role rows: %w", err)
	}
	return roles, nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := scanRoleInto(row, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying role: %w", err)
	}
	return &role, nil
}

func scanRoleInto(row pgx.Row, role *Role) error {
	return row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.Apps)
}
