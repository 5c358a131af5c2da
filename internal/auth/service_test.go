package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/logging"
)

type memAccounts struct {
	byID map[uuid.UUID]*account.Account
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	if a, ok := m.byID[id]; ok {
		return a, nil
	}
	return nil, account.ErrNotFound
}

type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
	owners map[uuid.UUID][]string
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: map[string]*RefreshToken{}, owners: map[uuid.UUID][]string{}}
}

func (m *memRefreshTokens) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := hashToken(token)
	m.tokens[h] = &RefreshToken{UserID: userID, TokenHash: h, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	m.owners[userID] = append(m.owners[userID], h)
	return nil
}

func (m *memRefreshTokens) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[hashToken(token)]
	switch {
	case !ok:
		return nil, ErrRefreshTokenNotFound
	case rt.IsRevoked():
		return nil, ErrRefreshTokenRevoked
	case rt.IsExpired():
		return nil, ErrRefreshTokenExpired
	}
	cp := *rt
	return &cp, nil
}

func (m *memRefreshTokens) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[hashToken(token)]
	if !ok {
		return ErrRefreshTokenNotFound
	}
	if rt.IsRevoked() {
		return ErrRefreshTokenRevoked
	}
	now := time.Now()
	rt.RevokedAt = &now
	return nil
}

func (m *memRefreshTokens) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.owners[userID] {
		delete(m.tokens, h)
	}
	delete(m.owners, userID)
	return nil
}

type authFixture struct {
	svc      *Service
	accounts *memAccounts
	refresh  *memRefreshTokens
	tokens   *PasetoService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens, err := NewPasetoService(testPasetoKey)
	require.NoError(t, err)
	f := &authFixture{
		accounts: &memAccounts{byID: map[uuid.UUID]*account.Account{}},
		refresh:  newMemRefreshTokens(),
		tokens:   tokens,
	}
	f.svc = NewService(f.accounts, f.refresh, tokens, logging.NewDiscardLogger(), 15*time.Minute, time.Hour, bcrypt.MinCost)
	return f
}

func (f *authFixture) addAccount(t *testing.T, email, password string, role account.Role, status account.Status) *account.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	a := &account.Account{ID: uuid.New(), Email: email, PasswordHash: string(hash), Role: role, Status: status}
	f.accounts.byID[a.ID] = a
	return a
}

func TestService_Login(t *testing.T) {
	f := newAuthFixture(t)
	staff := f.addAccount(t, "staff@accp.org", "correct-horse", account.RoleStaff, account.StatusActive)

	tokens, err := f.svc.Login(context.Background(), "  Staff@ACCP.org ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(900), tokens.ExpiresIn)
	assert.NotEmpty(t, tokens.RefreshToken)

	claims, err := f.tokens.VerifyToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, staff.ID.String(), claims.UserID)
	assert.Equal(t, account.RoleStaff, claims.Role)
}

func TestService_Login_Failures(t *testing.T) {
	f := newAuthFixture(t)
	f.addAccount(t, "pending@example.com", "password1", account.RoleThaiStudent, account.StatusPendingApproval)
	f.addAccount(t, "rejected@example.com", "password1", account.RoleThaiStudent, account.StatusRejected)
	f.addAccount(t, "active@example.com", "password1", account.RoleThaiProfessional, account.StatusActive)

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"unknown email", "nobody@example.com", "password1", ErrInvalidCredentials},
		{"wrong password", "active@example.com", "password2", ErrInvalidCredentials},
		{"empty password", "active@example.com", "", ErrInvalidCredentials},
		{"pending review", "pending@example.com", "password1", ErrAccountNotActive},
		{"rejected", "rejected@example.com", "password1", ErrAccountNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Login_WrongPasswordBeforeStatus(t *testing.T) {
	f := newAuthFixture(t)
	f.addAccount(t, "pending@example.com", "password1", account.RoleThaiStudent, account.StatusPendingApproval)

	_, err := f.svc.Login(context.Background(), "pending@example.com", "guess")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewDummyHash_FallsBackOnInvalidCost(t *testing.T) {
	hash := newDummyHash(bcrypt.MaxCost+1, logging.NewDiscardLogger())
	require.NotEmpty(t, hash)

	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	hash = newDummyHash(bcrypt.MinCost, logging.NewDiscardLogger())
	cost, err = bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestService_Login_UnknownEmailWithInvalidCost(t *testing.T) {
	tokens, err := NewPasetoService(testPasetoKey)
	require.NoError(t, err)
	svc := NewService(&memAccounts{byID: map[uuid.UUID]*account.Account{}}, newMemRefreshTokens(), tokens, logging.NewDiscardLogger(), time.Minute, time.Hour, bcrypt.MaxCost+1)

	_, err = svc.Login(context.Background(), "nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Refresh_Rotates(t *testing.T) {
	f := newAuthFixture(t)
	f.addAccount(t, "admin@accp.org", "password1", account.RoleAdmin, account.StatusActive)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "admin@accp.org", "password1")
	require.NoError(t, err)

	second, err := f.svc.RefreshAccessToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.RefreshAccessToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	_, err = f.svc.RefreshAccessToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestService_Refresh_Unknown(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.RefreshAccessToken(context.Background(), "made-up")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Refresh_DeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)
	acc := f.addAccount(t, "staff@accp.org", "password1", account.RoleStaff, account.StatusActive)
	ctx := context.Background()

	a, err := f.svc.Login(ctx, "staff@accp.org", "password1")
	require.NoError(t, err)
	b, err := f.svc.Login(ctx, "staff@accp.org", "password1")
	require.NoError(t, err)

	acc.Status = account.StatusRejected

	_, err = f.svc.RefreshAccessToken(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountNotActive)

	_, err = f.svc.RefreshAccessToken(ctx, b.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "other sessions are revoked too")
}

func TestService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	f.addAccount(t, "admin@accp.org", "password1", account.RoleAdmin, account.StatusActive)
	ctx := context.Background()

	tokens, err := f.svc.Login(ctx, "admin@accp.org", "password1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeRefreshToken(ctx, tokens.RefreshToken))
	assert.NoError(t, f.svc.RevokeRefreshToken(ctx, tokens.RefreshToken), "second logout is a no-op")
	assert.NoError(t, f.svc.RevokeRefreshToken(ctx, "unknown"))

	_, err = f.svc.RefreshAccessToken(ctx, tokens.RefreshToken)
	assert.Error(t, err)
}
