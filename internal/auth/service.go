package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotActive   = errors.New("account is not active")
)

// Service handles sign-in and session rotation for every account role
type Service struct {
	accounts             AccountStore
	refreshTokens        RefreshTokenRepository
	tokens               TokenService
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	// compared against when the email is unknown so both paths cost one bcrypt
	dummyHash []byte
}

func NewService(
	accounts AccountStore,
	refreshTokens RefreshTokenRepository,
	tokens TokenService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
	hashCost int,
) *Service {
	return &Service{
		accounts:             accounts,
		refreshTokens:        refreshTokens,
		tokens:               tokens,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
		dummyHash:            newDummyHash(hashCost, logger),
	}
}

// newDummyHash falls back to bcrypt.DefaultCost when hashCost is out of range.
// Without a hash the unknown-email path would skip the bcrypt cost.
func newDummyHash(hashCost int, logger *logging.Logger) []byte {
	const secret = "accp-unknown-account"
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), hashCost)
	if err == nil {
		return hash
	}
	logger.Warn("invalid password hash cost, using default for dummy hash", "cost", hashCost, "error", err.Error())

	hash, err = bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: failed to generate dummy hash: %v", err))
	}
	return hash
}

// Login checks the password and issues a token pair. Accounts still pending
// review or rejected cannot sign in.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if acc.Status != account.StatusActive {
		return nil, ErrAccountNotActive
	}

	return s.generateTokens(ctx, acc)
}

// RefreshAccessToken rotates a refresh token. The old token is revoked
// before the new pair is issued, so each refresh token works once.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	rt, err := s.refreshTokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.refreshTokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	acc, err := s.accounts.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if acc.Status != account.StatusActive {
		if err := s.refreshTokens.RevokeAllUserTokens(ctx, acc.ID); err != nil {
			s.logger.Error("failed to revoke sessions of inactive account", "account_id", acc.ID, "error", err.Error())
		}
		return nil, ErrAccountNotActive
	}

	return s.generateTokens(ctx, acc)
}

// RevokeRefreshToken ends a session. Unknown or already revoked tokens are not an error.
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	err := s.refreshTokens.RevokeRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenRevoked) {
		return nil
	}
	return err
}

// Me returns the signed-in account
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) generateTokens(ctx context.Context, acc *account.Account) (*AuthTokens, error) {
	accessToken, err := s.tokens.CreateToken(acc.ID, acc.Email, acc.Role, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.refreshTokenDuration)
	if err := s.refreshTokens.StoreRefreshToken(ctx, acc.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}

func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
