package auth

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/accp-conference/api/internal/account"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims is what a verified access token carries, independent of format
type TokenClaims struct {
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	Role      account.Role `json:"role"`
	IssuedAt  time.Time    `json:"iat"`
	ExpiresAt time.Time    `json:"exp"`
}

// PasetoService issues v4.local tokens (XChaCha20-Poly1305 with a 32-byte key)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	now          func() time.Time
}

func NewPasetoService(symmetricKey []byte) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{symmetricKey: key, now: time.Now}, nil
}

func (s *PasetoService) CreateToken(userID uuid.UUID, email string, role account.Role, duration time.Duration) (string, error) {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(duration))
	token.SetSubject(userID.String())
	token.SetString("email", email)
	token.SetString("role", string(role))

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyToken decrypts the token and checks expiry itself so that an
// expired token can be told apart from a forged one.
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}
	subject, err := token.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	email, err := token.GetString("email")
	if err != nil {
		return nil, ErrInvalidToken
	}
	role, err := token.GetString("role")
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    subject,
		Email:     email,
		Role:      account.Role(role),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
