package auth

import (
	"context"
	"sync"
	"time"
)

// UserRepository persists accounts. Emails are stored normalized.
type UserRepository interface {
	// Create returns ErrEmailTaken when the email is in use.
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Update returns ErrEmailTaken when the new email belongs to someone else.
	Update(ctx context.Context, user *User) error
}

// RefreshTokenRepository persists refresh tokens by digest.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	// FindByHash returns ErrInvalidRefreshToken for unknown digests.
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// Revoke is a no-op for unknown or already revoked digests.
	Revoke(ctx context.Context, hash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// InMemoryUserRepository keeps users in process memory. It backs the API
// when no database is configured.
type InMemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (r *InMemoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return ErrEmailTaken
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *InMemoryUserRepository) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
		return ErrEmailTaken
	}
	delete(r.byEmail, prev.Email)
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

// InMemoryRefreshTokenRepository keeps refresh tokens in process memory.
type InMemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*RefreshToken
}

func NewInMemoryRefreshTokenRepository() *InMemoryRefreshTokenRepository {
	return &InMemoryRefreshTokenRepository{byHash: make(map[string]*RefreshToken)}
}

func (r *InMemoryRefreshTokenRepository) Create(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := *token
	r.byHash[token.TokenHash] = &t
	return nil
}

func (r *InMemoryRefreshTokenRepository) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	cpy := *t
	return &cpy, nil
}

func (r *InMemoryRefreshTokenRepository) Revoke(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byHash[hash]; ok && t.RevokedAt == nil {
		t.RevokedAt = &at
	}
	return nil
}

func (r *InMemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &at
		}
	}
	return nil
}

var (
	_ UserRepository         = (*InMemoryUserRepository)(nil)
	_ RefreshTokenRepository = (*InMemoryRefreshTokenRepository)(nil)
)
