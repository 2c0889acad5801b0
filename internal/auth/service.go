package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ServiceConfig wires a Service to its signer and stores.
type ServiceConfig struct {
	JWTService  *JWTService
	UserRepo    UserRepository
	RefreshRepo RefreshTokenRepository
	Logger      zerolog.Logger
}

// Service registers runners, checks their credentials and issues token pairs.
type Service struct {
	jwt     *JWTService
	users   UserRepository
	refresh RefreshTokenRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		jwt:     cfg.JWTService,
		users:   cfg.UserRepo,
		refresh: cfg.RefreshRepo,
		log:     cfg.Logger,
		now:     time.Now,
	}
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &User{
		ID:           newUserID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch err := s.users.Create(ctx, user); {
	case errors.Is(err, ErrEmailTaken):
		return nil, ErrEmailTaken
	case err != nil:
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issue(ctx, user)
}

// Login exchanges email and password for a token pair. Unknown emails yield
// ErrUserNotFound and wrong passwords ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if err := s.verify(user, req.Password); err != nil {
		s.log.Info().Str("user_id", user.ID).Msg("login rejected")
		return nil, err
	}
	return s.issue(ctx, user)
}

// RefreshAccessToken rotates a refresh token: the presented token is revoked
// and a fresh pair is returned.
func (s *Service) RefreshAccessToken(ctx context.Context, token string) (*TokenResponse, error) {
	hash := HashRefreshToken(token)
	stored, err := s.refresh.FindByHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	now := s.now()
	if err := stored.Usable(now); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if err := s.refresh.Revoke(ctx, hash, now); err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}
	return s.issue(ctx, user)
}

// ValidateAccessToken returns the user ID an access token was issued to.
func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of req. A password change needs
// the current password and signs the user out of every other session.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *ProfileUpdateRequest) (*User, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = NormalizeEmail(*req.Email)
	}
	if req.NewPassword != nil {
		if err := s.verify(user, *req.CurrentPassword); err != nil {
			return nil, err
		}
		if user.PasswordHash, err = HashPassword(*req.NewPassword); err != nil {
			return nil, err
		}
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if req.NewPassword != nil {
		if err := s.refresh.RevokeAllForUser(ctx, user.ID, user.UpdatedAt); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("revoking sessions after password change")
		}
	}
	return user, nil
}

// RevokeRefreshToken signs out the session holding token.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.refresh.Revoke(ctx, HashRefreshToken(token), s.now())
}

// RevokeAllTokens signs the user out everywhere.
func (s *Service) RevokeAllTokens(ctx context.Context, userID string) error {
	return s.refresh.RevokeAllForUser(ctx, userID, s.now())
}

func (s *Service) verify(user *User, password string) error {
	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// issue signs an access token and stores the digest of a new refresh token.
func (s *Service) issue(ctx context.Context, user *User) (*TokenResponse, error) {
	access, expires, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.refresh.Create(ctx, &RefreshToken{
		ID:        uuid.NewString(),
		TokenHash: HashRefreshToken(refresh),
		UserID:    user.ID,
		ExpiresAt: now.Add(RefreshTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenResponse{
		Token:        access,
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(expires.Sub(now).Seconds()),
		RefreshToken: refresh,
		User:         user,
	}, nil
}

func newUserID() string {
	return "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
