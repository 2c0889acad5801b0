// Package auth provides email/password accounts and token issuance for SmartRunning.
package auth

import (
	"net/mail"
	"strings"
	"time"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

func passwordError(field, password string) *FieldError {
	switch {
	case len(password) < MinPasswordLength:
		return &FieldError{Field: field, Message: "password must be at least 8 characters", Code: "TOO_SHORT"}
	case len(password) > MaxPasswordLength:
		return &FieldError{Field: field, Message: "password must be at most 72 bytes", Code: "TOO_LONG"}
	}
	return nil
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError carries every field error found in a request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Errors[0].Message
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func required(field, value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: field + " is required", Code: "REQUIRED"}
	}
	return nil
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the register request.
func (r *RegisterRequest) Validate() []FieldError {
	var errs []FieldError
	for _, fe := range []*FieldError{
		required("name", r.Name),
		required("email", r.Email),
		required("password", r.Password),
	} {
		if fe != nil {
			errs = append(errs, *fe)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if !validEmail(NormalizeEmail(r.Email)) {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address", Code: "INVALID_FORMAT"})
	}
	if fe := passwordError("password", r.Password); fe != nil {
		errs = append(errs, *fe)
	}
	return errs
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request.
func (r *LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if fe := required("email", r.Email); fe != nil {
		errs = append(errs, *fe)
	}
	if fe := required("password", r.Password); fe != nil {
		errs = append(errs, *fe)
	}
	return errs
}

// ProfileUpdateRequest is the body of PUT /auth/profile. Nil fields are left unchanged.
type ProfileUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentPassword *string `json:"currentPassword,omitempty"`
	NewPassword     *string `json:"newPassword,omitempty"`
}

// Validate validates the profile update request.
func (r *ProfileUpdateRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name must not be empty", Code: "REQUIRED"})
	}
	if r.Email != nil && !validEmail(NormalizeEmail(*r.Email)) {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address", Code: "INVALID_FORMAT"})
	}
	if r.NewPassword != nil {
		if fe := passwordError("newPassword", *r.NewPassword); fe != nil {
			errs = append(errs, *fe)
		}
		if r.CurrentPassword == nil || *r.CurrentPassword == "" {
			errs = append(errs, FieldError{Field: "currentPassword", Message: "current password is required to change password", Code: "REQUIRED"})
		}
	}
	return errs
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// Token duplicates AccessToken for clients that read the legacy field.
	Token string `json:"token"`

	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	RefreshToken string `json:"refreshToken,omitempty"`

	// User contains the authenticated user's information.
	User *User `json:"user"`
}

// RefreshTokenRequest represents the request to refresh an access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate validates the refresh token request.
func (r *RefreshTokenRequest) Validate() []FieldError {
	var errors []FieldError

	if r.RefreshToken == "" {
		errors = append(errors, FieldError{
			Field:   "refreshToken",
			Message: "refresh token is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}
