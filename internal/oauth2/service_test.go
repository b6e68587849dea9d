package oauth2_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goauth2 "golang.org/x/oauth2"

	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// --- In-memory repository ---

type memRepo struct {
	mu      sync.Mutex
	clients map[string]oauth2.Client
	codes   map[string]oauth2.AuthorizationCode
	tokens  map[uuid.UUID]oauth2.Token
}

func newMemRepo() *memRepo {
	return &memRepo{
		clients: make(map[string]oauth2.Client),
		codes:   make(map[string]oauth2.AuthorizationCode),
		tokens:  make(map[uuid.UUID]oauth2.Token),
	}
}

func (m *memRepo) GetClient(_ context.Context, id string) (*oauth2.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, oauth2.ErrClientNotFound
	}
	return &c, nil
}

func (m *memRepo) ListClients(_ context.Context) ([]oauth2.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []oauth2.Client{}
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) CreateClient(_ context.Context, c *oauth2.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ClientID]; ok {
		return oauth2.ErrDuplicateClient
	}
	c.CreatedAt = time.Now()
	m.clients[c.ClientID] = *c
	return nil
}

func (m *memRepo) UpsertClient(_ context.Context, c *oauth2.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ClientID] = *c
	return nil
}

func (m *memRepo) DeleteClient(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return oauth2.ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memRepo) CreateAuthorizationCode(_ context.Context, ac *oauth2.AuthorizationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[ac.Code] = *ac
	return nil
}

func (m *memRepo) ClaimAuthorizationCode(_ context.Context, code string, check func(*oauth2.AuthorizationCode) error) (*oauth2.AuthorizationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac, ok := m.codes[code]
	if !ok {
		return nil, oauth2.ErrCodeNotFound
	}
	if err := check(&ac); err != nil {
		return nil, err
	}
	ac.Used = true
	m.codes[code] = ac
	return &ac, nil
}

func (m *memRepo) CreateToken(_ context.Context, t *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	m.tokens[t.ID] = *t
	return nil
}

func (m *memRepo) find(match func(oauth2.Token) bool) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if match(t) {
			return &t, nil
		}
	}
	return nil, oauth2.ErrTokenNotFound
}

func (m *memRepo) GetTokenByAccess(_ context.Context, v string) (*oauth2.Token, error) {
	return m.find(func(t oauth2.Token) bool { return t.AccessToken == v })
}

func (m *memRepo) GetTokenByRefresh(_ context.Context, v string) (*oauth2.Token, error) {
	return m.find(func(t oauth2.Token) bool { return t.RefreshToken == v })
}

func (m *memRepo) RotateToken(_ context.Context, oldID uuid.UUID, next *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[oldID]
	if !ok || old.Revoked {
		return oauth2.ErrTokenRevoked
	}
	old.Revoked = true
	m.tokens[oldID] = old
	next.ID = uuid.New()
	m.tokens[next.ID] = *next
	return nil
}

func (m *memRepo) RevokeToken(_ context.Context, v string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.AccessToken == v || t.RefreshToken == v {
			t.Revoked = true
			m.tokens[id] = t
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) RevokeUserTokens(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			m.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (m *memRepo) PurgeExpired(_ context.Context, now time.Time) (oauth2.PurgeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res oauth2.PurgeResult
	for code, ac := range m.codes {
		if ac.ExpiresAt.Before(now) {
			delete(m.codes, code)
			res.Codes++
		}
	}
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(now) && t.RefreshExpiresAt.Before(now) {
			delete(m.tokens, id)
			res.Tokens++
		}
	}
	return res, nil
}

// --- Users ---

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) set(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// --- Fixture ---

const (
	clientID    = "c1"
	redirectURI = "https://app/callback"
)

type fixture struct {
	svc    *oauth2.Service
	repo   *memRepo
	users  *memUsers
	alice  *user.User
	secret string
	clock  *clock
}

type clock struct {
	offset atomic.Int64
}

func (c *clock) now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

func (c *clock) advance(d time.Duration) {
	c.offset.Add(int64(d))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kp, err := security.LoadOrGenerateKeyPair("", "", "test")
	require.NoError(t, err)
	codec := token.NewCodec(token.NewRS256Signer(kp), "http://kubarr.test/auth")

	alice := &user.User{
		ID:         uuid.New(),
		Username:   "alice",
		Email:      "alice@example.com",
		IsActive:   true,
		IsApproved: true,
	}
	users := &memUsers{users: map[uuid.UUID]*user.User{alice.ID: alice}}
	repo := newMemRepo()
	clk := &clock{}

	svc := oauth2.NewService(repo, users, codec, security.NewBcryptHasher(4), oauth2.WithClock(clk.now))

	secret, err := svc.RegisterClient(context.Background(), clientID, "Test App", []string{redirectURI})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, users: users, alice: alice, secret: secret, clock: clk}
}

func (f *fixture) code(t *testing.T, challenge, method string) string {
	t.Helper()
	code, err := f.svc.CreateAuthorizationCode(context.Background(), oauth2.CodeRequest{
		ClientID:            clientID,
		UserID:              f.alice.ID,
		RedirectURI:         redirectURI,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	})
	require.NoError(t, err)
	return code
}

// --- Client validation ---

func TestValidateClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ValidateClient(ctx, clientID, f.secret)
	assert.NoError(t, err)

	_, err = f.svc.ValidateClient(ctx, clientID, "")
	assert.NoError(t, err, "secret is optional for ValidateClient")

	_, err = f.svc.ValidateClient(ctx, clientID, "wrong")
	assert.ErrorIs(t, err, oauth2.ErrInvalidClient)

	_, err = f.svc.ValidateClient(ctx, "unknown", f.secret)
	assert.ErrorIs(t, err, oauth2.ErrInvalidClient)
}

func TestAuthenticateClient_RequiresSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.AuthenticateClient(context.Background(), clientID, "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidClient)

	_, err = f.svc.AuthenticateClient(context.Background(), clientID, f.secret)
	assert.NoError(t, err)
}

func TestProvisionClient_RotatesSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ProvisionClient(ctx, "radarr-oauth", "radarr", []string{"https://radarr/cb"})
	require.NoError(t, err)
	second, err := f.svc.ProvisionClient(ctx, "radarr-oauth", "radarr", []string{"https://radarr/cb"})
	require.NoError(t, err)

	_, err = f.svc.ValidateClient(ctx, "radarr-oauth", first)
	assert.ErrorIs(t, err, oauth2.ErrInvalidClient)
	_, err = f.svc.ValidateClient(ctx, "radarr-oauth", second)
	assert.NoError(t, err)
}

func TestEnsureAppClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	id, secret, err := f.svc.EnsureAppClient(ctx, "sonarr", "Sonarr", "https://kubarr.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "sonarr-oauth", id)

	c, err := f.svc.ValidateClient(ctx, id, secret)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://kubarr.example.com/sonarr/oauth2/callback"}, c.RedirectURIs)

	clients, err := f.svc.ListClients(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(clients))
	for _, cl := range clients {
		ids = append(ids, cl.ClientID)
	}
	assert.ElementsMatch(t, []string{clientID, "sonarr-oauth"}, ids)
}

// --- Authorization codes ---

func TestCreateAuthorizationCode_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAuthorizationCode(ctx, oauth2.CodeRequest{
		ClientID: "unknown", UserID: f.alice.ID, RedirectURI: redirectURI,
	})
	assert.ErrorIs(t, err, oauth2.ErrInvalidClient)

	_, err = f.svc.CreateAuthorizationCode(ctx, oauth2.CodeRequest{
		ClientID: clientID, UserID: f.alice.ID, RedirectURI: "https://evil/callback",
	})
	assert.ErrorIs(t, err, oauth2.ErrInvalidRedirectURI)

	_, err = f.svc.CreateAuthorizationCode(ctx, oauth2.CodeRequest{
		ClientID: clientID, UserID: f.alice.ID, RedirectURI: redirectURI,
		CodeChallenge: "abc", CodeChallengeMethod: "S512",
	})
	assert.ErrorIs(t, err, oauth2.ErrUnsupportedChallengeMethod)
}

func TestCreateAuthorizationCode_Defaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code := f.code(t, "challenge", "")

	stored := f.repo.codes[code]
	assert.Equal(t, oauth2.DefaultScope, stored.Scope)
	assert.Equal(t, "S256", stored.CodeChallengeMethod)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), stored.ExpiresAt, 5*time.Second)
	assert.False(t, stored.Used)
}

func TestExchangeAuthorizationCode_SingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	code := f.code(t, "", "")

	pair, err := f.svc.ExchangeAuthorizationCode(ctx, code, clientID, redirectURI, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEmpty(t, pair.IDToken, "openid is in the default scope")
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, time.Hour, pair.ExpiresIn)

	_, err = f.svc.ExchangeAuthorizationCode(ctx, code, clientID, redirectURI, "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestExchangeAuthorizationCode_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	code := f.code(t, "", "")

	const attempts = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		invalid   atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.ExchangeAuthorizationCode(ctx, code, clientID, redirectURI, "")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, oauth2.ErrInvalidGrant):
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(attempts-1), invalid.Load())
}

func TestValidateAuthorizationCode_Mismatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	code := f.code(t, "", "")

	_, err := f.svc.ValidateAuthorizationCode(ctx, code, "other-client", redirectURI, "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)

	_, err = f.svc.ValidateAuthorizationCode(ctx, code, clientID, "https://app/other", "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)

	_, err = f.svc.ValidateAuthorizationCode(ctx, "no-such-code", clientID, redirectURI, "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)

	// Rejected attempts do not consume the code.
	ac, err := f.svc.ValidateAuthorizationCode(ctx, code, clientID, redirectURI, "")
	require.NoError(t, err)
	assert.True(t, ac.Used)
	assert.Equal(t, f.alice.ID, ac.UserID)
}

func TestValidateAuthorizationCode_Expired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code := f.code(t, "", "")
	f.clock.advance(11 * time.Minute)

	_, err := f.svc.ValidateAuthorizationCode(context.Background(), code, clientID, redirectURI, "")
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestValidateAuthorizationCode_PKCE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	verifier := goauth2.GenerateVerifier()
	challenge := goauth2.S256ChallengeFromVerifier(verifier)

	tests := []struct {
		name     string
		method   string
		verifier string
		wantErr  bool
	}{
		{name: "s256 match", method: "S256", verifier: verifier},
		{name: "s256 wrong verifier", method: "S256", verifier: goauth2.GenerateVerifier(), wantErr: true},
		{name: "s256 missing verifier", method: "S256", verifier: "", wantErr: true},
		{name: "method defaults to s256", method: "", verifier: verifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code := f.code(t, challenge, tt.method)

			_, err := f.svc.ValidateAuthorizationCode(ctx, code, clientID, redirectURI, tt.verifier)
			if tt.wantErr {
				assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAuthorizationCode_PlainPKCE(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	code := f.code(t, "plain-verifier-value", "plain")
	_, err := f.svc.ValidateAuthorizationCode(ctx, code, clientID, redirectURI, "plain-verifier-value")
	assert.NoError(t, err)
}

// --- Tokens ---

func TestRefreshAccessToken_Rotation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "openid profile")
	require.NoError(t, err)

	second, err := f.svc.RefreshAccessToken(ctx, first.RefreshToken, clientID)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "openid profile", second.Scope)

	_, err = f.svc.ValidateAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, oauth2.ErrInvalidToken)

	_, err = f.svc.RefreshAccessToken(ctx, first.RefreshToken, clientID)
	assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)

	_, err = f.svc.ValidateAccessToken(ctx, second.AccessToken)
	assert.NoError(t, err)
	assert.True(t, f.svc.IntrospectToken(ctx, second.AccessToken).Active)
}

func TestRefreshAccessToken_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "profile")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RefreshAccessToken(ctx, pair.RefreshToken, clientID); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestRefreshAccessToken_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong client", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
		require.NoError(t, err)

		_, err = f.svc.RefreshAccessToken(ctx, pair.RefreshToken, "other")
		assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
		require.NoError(t, err)

		_, err = f.svc.RefreshAccessToken(ctx, pair.AccessToken, clientID)
		assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
	})

	t.Run("expired in store", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
		require.NoError(t, err)
		f.clock.advance(8 * 24 * time.Hour)

		_, err = f.svc.RefreshAccessToken(ctx, pair.RefreshToken, clientID)
		assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
	})

	t.Run("garbage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RefreshAccessToken(ctx, "not-a-token", clientID)
		assert.ErrorIs(t, err, oauth2.ErrInvalidGrant)
	})
}

func TestValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
	require.NoError(t, err)

	f.clock.advance(61 * time.Minute)
	_, err = f.svc.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, oauth2.ErrInvalidToken)
	assert.False(t, f.svc.IntrospectToken(ctx, pair.AccessToken).Active)
}

func TestRevokeToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("by access token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
		require.NoError(t, err)
		require.True(t, f.svc.IntrospectToken(ctx, pair.AccessToken).Active)

		require.NoError(t, f.svc.RevokeToken(ctx, pair.AccessToken))
		assert.False(t, f.svc.IntrospectToken(ctx, pair.AccessToken).Active)

		_, err = f.svc.RefreshAccessToken(ctx, pair.RefreshToken, clientID)
		assert.ErrorIs(t, err, oauth2.ErrInvalidGrant, "revocation covers both halves")

		assert.NoError(t, f.svc.RevokeToken(ctx, pair.AccessToken), "idempotent")
	})

	t.Run("by refresh token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
		require.NoError(t, err)

		require.NoError(t, f.svc.RevokeToken(ctx, pair.RefreshToken))
		assert.False(t, f.svc.IntrospectToken(ctx, pair.AccessToken).Active)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.svc.RevokeToken(ctx, "unknown"))
		assert.NoError(t, f.svc.RevokeToken(ctx, ""))
	})
}

func TestIntrospectToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "openid email")
	require.NoError(t, err)

	got := f.svc.IntrospectToken(ctx, pair.AccessToken)
	assert.True(t, got.Active)
	assert.Equal(t, f.alice.ID.String(), got.Sub)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "openid email", got.Scope)
	assert.Equal(t, clientID, got.ClientID)
	assert.NotZero(t, got.Exp)

	assert.False(t, f.svc.IntrospectToken(ctx, pair.RefreshToken).Active)
	assert.False(t, f.svc.IntrospectToken(ctx, pair.IDToken).Active)
	assert.False(t, f.svc.IntrospectToken(ctx, "garbage").Active)
}

func TestIntrospectToken_DeactivatedUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
	require.NoError(t, err)

	deactivated := *f.alice
	deactivated.IsActive = false
	f.users.set(&deactivated)

	assert.False(t, f.svc.IntrospectToken(ctx, pair.AccessToken).Active)

	unapproved := *f.alice
	unapproved.IsApproved = false
	f.users.set(&unapproved)

	_, _, err = f.svc.AuthenticateBearer(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, oauth2.ErrInvalidToken)
}

func TestCreateTokens_NoIDTokenWithoutOpenID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	pair, err := f.svc.CreateTokens(context.Background(), clientID, f.alice.ID, "profile")
	require.NoError(t, err)
	assert.Empty(t, pair.IDToken)
}

func TestRevokeUserTokens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
	require.NoError(t, err)
	b, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeUserTokens(ctx, f.alice.ID))

	assert.False(t, f.svc.IntrospectToken(ctx, a.AccessToken).Active)
	assert.False(t, f.svc.IntrospectToken(ctx, b.AccessToken).Active)
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.code(t, "", "")
	_, err := f.svc.CreateTokens(ctx, clientID, f.alice.ID, "")
	require.NoError(t, err)

	res, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Codes)
	assert.Zero(t, res.Tokens)

	f.clock.advance(8 * 24 * time.Hour)
	res, err = f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Codes)
	assert.Equal(t, int64(1), res.Tokens)
}
