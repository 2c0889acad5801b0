package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Access tokens are HS256 JWTs carrying the user ID and email. Refresh tokens
// are opaque random strings; only their SHA-256 digest is persisted, and each
// one is rotated on use.

const (
	DefaultAccessTokenExpiry = 7 * 24 * time.Hour
	RefreshTokenExpiry       = 30 * 24 * time.Hour

	// RefreshTokenLength is the number of random bytes in a refresh token.
	RefreshTokenLength = 32
)

var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// JWTClaims are the claims of an access token. Subject and UserID agree.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
}

// JWTConfig configures access token signing. AccessTokenExpiry falls back to
// DefaultAccessTokenExpiry when not positive.
type JWTConfig struct {
	SigningKey        string
	Issuer            string
	Audience          string
	AccessTokenExpiry time.Duration
}

// JWTService signs and verifies access tokens.
type JWTService struct {
	key    []byte
	cfg    JWTConfig
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTService(cfg JWTConfig) *JWTService {
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	return &JWTService{
		key: []byte(cfg.SigningKey),
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		now: time.Now,
	}
}

// GenerateAccessToken signs a token for user and reports when it expires.
func (s *JWTService) GenerateAccessToken(user *User) (string, time.Time, error) {
	issued := s.now()
	expires := issued.Add(s.cfg.AccessTokenExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: user.ID,
		Email:  user.Email,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
func (s *JWTService) ValidateAccessToken(raw string) (*JWTClaims, error) {
	var claims JWTClaims
	_, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	case claims.UserID == "" || claims.UserID != claims.Subject:
		return nil, ErrInvalidAccessToken
	}
	return &claims, nil
}

// RefreshToken is the persisted record of an issued refresh token.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether t can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) error {
	if t.RevokedAt != nil {
		return ErrInvalidRefreshToken
	}
	if !now.Before(t.ExpiresAt) {
		return ErrRefreshTokenExpired
	}
	return nil
}

// GenerateRefreshToken returns a new URL-safe opaque token.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, RefreshTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken is the lookup key stored in place of the token itself.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
