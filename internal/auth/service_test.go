package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/auth"
)

func newTestService() *auth.Service {
	return auth.NewService(auth.ServiceConfig{
		JWTService:  jwtService(testKey, testIssuer, testAudience),
		UserRepo:    auth.NewInMemoryUserRepository(),
		RefreshRepo: auth.NewInMemoryRefreshTokenRepository(),
		Logger:      zerolog.Nop(),
	})
}

func register(t *testing.T, svc *auth.Service) *auth.TokenResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &auth.RegisterRequest{
		Name:     "Ada Runner",
		Email:    "  Ada@Example.com ",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	svc := newTestService()
	resp := register(t, svc)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, resp.AccessToken, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Regexp(t, `^usr_`, resp.User.ID)
	assert.NotEqual(t, "correct-horse", resp.User.PasswordHash)

	userID, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	register(t, svc)

	_, err := svc.Register(context.Background(), &auth.RegisterRequest{
		Name:     "Other",
		Email:    "ada@example.com",
		Password: "another-pass",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		req    auth.RegisterRequest
		fields []string
	}{
		{"all missing", auth.RegisterRequest{}, []string{"name", "email", "password"}},
		{"bad email", auth.RegisterRequest{Name: "a", Email: "nope", Password: "longenough"}, []string{"email"}},
		{"short password", auth.RegisterRequest{Name: "a", Email: "a@b.co", Password: "short"}, []string{"password"}},
	}

	svc := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.req)
			var verr *auth.ValidationError
			require.ErrorAs(t, err, &verr)

			var fields []string
			for _, fe := range verr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestLogin(t *testing.T) {
	svc := newTestService()
	reg := register(t, svc)
	ctx := context.Background()

	resp, err := svc.Login(ctx, &auth.LoginRequest{Email: "ADA@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, resp.User.ID)

	_, err = svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &auth.LoginRequest{Email: "ghost@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = svc.Login(ctx, &auth.LoginRequest{})
	var verr *auth.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRefreshAccessToken_Rotation(t *testing.T) {
	svc := newTestService()
	reg := register(t, svc)
	ctx := context.Background()

	next, err := svc.RefreshAccessToken(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, next.RefreshToken)

	_, err = svc.RefreshAccessToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	require.NoError(t, svc.RevokeAllTokens(ctx, reg.User.ID))
	_, err = svc.RefreshAccessToken(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService()
	reg := register(t, svc)
	ctx := context.Background()

	name := "Ada L."
	email := "ada.l@example.com"
	user, err := svc.UpdateProfile(ctx, reg.User.ID, &auth.ProfileUpdateRequest{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, name, user.Name)
	assert.Equal(t, email, user.Email)

	_, err = svc.Login(ctx, &auth.LoginRequest{Email: email, Password: "correct-horse"})
	assert.NoError(t, err)
	_, err = svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUpdateProfile_PasswordChange(t *testing.T) {
	svc := newTestService()
	reg := register(t, svc)
	ctx := context.Background()

	wrong := "not-my-password"
	newPass := "brand-new-pass"
	_, err := svc.UpdateProfile(ctx, reg.User.ID, &auth.ProfileUpdateRequest{CurrentPassword: &wrong, NewPassword: &newPass})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.UpdateProfile(ctx, reg.User.ID, &auth.ProfileUpdateRequest{NewPassword: &newPass})
	var verr *auth.ValidationError
	assert.ErrorAs(t, err, &verr)

	current := "correct-horse"
	_, err = svc.UpdateProfile(ctx, reg.User.ID, &auth.ProfileUpdateRequest{CurrentPassword: &current, NewPassword: &newPass})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: newPass})
	assert.NoError(t, err)

	// Password changes revoke outstanding refresh tokens.
	_, err = svc.RefreshAccessToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	svc := newTestService()
	reg := register(t, svc)
	ctx := context.Background()

	_, err := svc.Register(ctx, &auth.RegisterRequest{Name: "Bo", Email: "bo@example.com", Password: "bo-password"})
	require.NoError(t, err)

	taken := "bo@example.com"
	_, err = svc.UpdateProfile(ctx, reg.User.ID, &auth.ProfileUpdateRequest{Email: &taken})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestGetProfile_NotFound(t *testing.T) {
	_, err := newTestService().GetProfile(context.Background(), "usr_missing")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)

	ok, err := auth.CheckPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CheckPassword(hash, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = auth.CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}

func TestRefreshTokens_StoredAsDigest(t *testing.T) {
	refresh := auth.NewInMemoryRefreshTokenRepository()
	svc := auth.NewService(auth.ServiceConfig{
		JWTService:  auth.NewJWTService(auth.JWTConfig{SigningKey: testKey, Issuer: testIssuer, Audience: testAudience}),
		UserRepo:    auth.NewInMemoryUserRepository(),
		RefreshRepo: refresh,
		Logger:      zerolog.Nop(),
	})
	reg := register(t, svc)
	ctx := context.Background()

	_, err := refresh.FindByHash(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken, "raw token is not a lookup key")

	stored, err := refresh.FindByHash(ctx, auth.HashRefreshToken(reg.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, stored.UserID)
	assert.WithinDuration(t, time.Now().Add(auth.RefreshTokenExpiry), stored.ExpiresAt, time.Minute)

	require.NoError(t, svc.RevokeRefreshToken(ctx, reg.RefreshToken))
	_, err = svc.RefreshAccessToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	assert.NoError(t, svc.RevokeRefreshToken(ctx, "never-issued"))
}
