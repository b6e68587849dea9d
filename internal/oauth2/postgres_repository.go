package oauth2

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubarr/kubarr/internal/db"
)

const tokenColumns = `
	SELECT id, access_token, COALESCE(refresh_token, ''), client_id, user_id, scope,
	       expires_at, COALESCE(refresh_expires_at, expires_at), revoked, created_at
	FROM oauth2_tokens`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// GetClient retrieves a client by its client ID.
func (r *PostgresRepository) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, client_secret_hash, name, redirect_uris, created_at
		FROM oauth2_clients
		WHERE client_id = $1`, clientID,
	).Scan(&c.ClientID, &c.ClientSecretHash, &c.Name, &c.RedirectURIs, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("querying oauth2 client: %w", err)
	}
	return &c, nil
}

// ListClients returns all registered clients ordered by client ID.
func (r *PostgresRepository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, client_secret_hash, name, redirect_uris, created_at
		FROM oauth2_clients
		ORDER BY client_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing oauth2 clients: %w", err)
	}
	defer rows.Close()

	clients := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ClientID, &c.ClientSecretHash, &c.Name, &c.RedirectURIs, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning oauth2 client row: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating oauth2 client rows: %w", err)
	}
	return clients, nil
}

// CreateClient inserts a new client.
func (r *PostgresRepository) CreateClient(ctx context.Context, c *Client) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO oauth2_clients (client_id, client_secret_hash, name, redirect_uris)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		c.ClientID, c.ClientSecretHash, c.Name, redirectURIs(c),
	).Scan(&c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateClient
		}
		return fmt.Errorf("inserting oauth2 client: %w", err)
	}
	return nil
}

// UpsertClient inserts the client or replaces its secret, name and redirect URIs.
func (r *PostgresRepository) UpsertClient(ctx context.Context, c *Client) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO oauth2_clients (client_id, client_secret_hash, name, redirect_uris)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id) DO UPDATE
		SET client_secret_hash = EXCLUDED.client_secret_hash,
		    name = EXCLUDED.name,
		    redirect_uris = EXCLUDED.redirect_uris
		RETURNING created_at`,
		c.ClientID, c.ClientSecretHash, c.Name, redirectURIs(c),
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting oauth2 client: %w", err)
	}
	return nil
}

// DeleteClient removes a client together with its codes and tokens.
func (r *PostgresRepository) DeleteClient(ctx context.Context, clientID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM oauth2_clients WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("deleting oauth2 client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// CreateAuthorizationCode inserts a new authorization code.
func (r *PostgresRepository) CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO oauth2_authorization_codes
			(code, client_id, user_id, redirect_uri, scope, code_challenge, code_challenge_method, expires_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING created_at`,
		code.Code, code.ClientID, code.UserID, code.RedirectURI, code.Scope,
		code.CodeChallenge, code.CodeChallengeMethod, code.ExpiresAt,
	).Scan(&code.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting authorization code: %w", err)
	}
	return nil
}

// ClaimAuthorizationCode locks the code row with SELECT ... FOR UPDATE, runs
// check, and marks the code used before committing. A second concurrent
// caller blocks on the lock and then sees used=true.
func (r *PostgresRepository) ClaimAuthorizationCode(ctx context.Context, code string, check func(*AuthorizationCode) error) (*AuthorizationCode, error) {
	var ac AuthorizationCode

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT code, client_id, user_id, redirect_uri, scope,
			       COALESCE(code_challenge, ''), COALESCE(code_challenge_method, ''),
			       expires_at, used, created_at
			FROM oauth2_authorization_codes
			WHERE code = $1
			FOR UPDATE`, code,
		).Scan(
			&ac.Code, &ac.ClientID, &ac.UserID, &ac.RedirectURI, &ac.Scope,
			&ac.CodeChallenge, &ac.CodeChallengeMethod,
			&ac.ExpiresAt, &ac.Used, &ac.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCodeNotFound
			}
			return fmt.Errorf("locking authorization code: %w", err)
		}

		if err := check(&ac); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE oauth2_authorization_codes SET used = TRUE WHERE code = $1`, code); err != nil {
			return fmt.Errorf("marking authorization code used: %w", err)
		}
		ac.Used = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// CreateToken inserts a new token pair.
func (r *PostgresRepository) CreateToken(ctx context.Context, t *Token) error {
	return insertToken(ctx, r.pool, t)
}

// GetTokenByAccess retrieves the pair owning an access token.
func (r *PostgresRepository) GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error) {
	return scanToken(r.pool.QueryRow(ctx, tokenColumns+` WHERE access_token = $1`, accessToken))
}

// GetTokenByRefresh retrieves the pair owning a refresh token.
func (r *PostgresRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	return scanToken(r.pool.QueryRow(ctx, tokenColumns+` WHERE refresh_token = $1`, refreshToken))
}

// RotateToken revokes the pair oldID and inserts next in a single
// transaction. If oldID was already revoked nothing is written and
// ErrTokenRevoked is returned.
func (r *PostgresRepository) RotateToken(ctx context.Context, oldID uuid.UUID, next *Token) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE oauth2_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`, oldID)
		if err != nil {
			return fmt.Errorf("revoking rotated token: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrTokenRevoked
		}
		return insertToken(ctx, tx, next)
	})
}

// RevokeToken marks the pair matching value as revoked. Revoking an already
// revoked pair is not an error.
func (r *PostgresRepository) RevokeToken(ctx context.Context, value string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE oauth2_tokens SET revoked = TRUE
		WHERE access_token = $1 OR refresh_token = $1`, value)
	if err != nil {
		return false, fmt.Errorf("revoking token: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RevokeUserTokens revokes every live pair belonging to userID.
func (r *PostgresRepository) RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE oauth2_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoking user tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgeExpired deletes codes past their expiry and token pairs whose access
// and refresh halves have both expired.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (PurgeResult, error) {
	var res PurgeResult

	codes, err := r.pool.Exec(ctx, `DELETE FROM oauth2_authorization_codes WHERE expires_at < $1`, now)
	if err != nil {
		return res, fmt.Errorf("purging authorization codes: %w", err)
	}
	res.Codes = codes.RowsAffected()

	tokens, err := r.pool.Exec(ctx, `
		DELETE FROM oauth2_tokens
		WHERE GREATEST(expires_at, COALESCE(refresh_expires_at, expires_at)) < $1`, now)
	if err != nil {
		return res, fmt.Errorf("purging tokens: %w", err)
	}
	res.Tokens = tokens.RowsAffected()

	return res, nil
}

func insertToken(ctx context.Context, q db.Querier, t *Token) error {
	err := q.QueryRow(ctx, `
		INSERT INTO oauth2_tokens
			(access_token, refresh_token, client_id, user_id, scope, expires_at, refresh_expires_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.AccessToken, t.RefreshToken, t.ClientID, t.UserID, t.Scope, t.ExpiresAt, t.RefreshExpiresAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting oauth2 token: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(
		&t.ID, &t.AccessToken, &t.RefreshToken, &t.ClientID, &t.UserID, &t.Scope,
		&t.ExpiresAt, &t.RefreshExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("querying oauth2 token: %w", err)
	}
	return &t, nil
}

func redirectURIs(c *Client) []string {
	if c.RedirectURIs == nil {
		return []string{}
	}
	return c.RedirectURIs
}
