package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/api/response"
	"github.com/smartrunning/smartrunning/internal/auth"
)

// authFailure maps a service error to the problem the client sees.
type authFailure struct {
	err    error
	kind   models.Kind
	detail string
}

var (
	registerFailures = []authFailure{
		{auth.ErrEmailTaken, models.KindConflict, "User with this email already exists"},
	}
	loginFailures = []authFailure{
		{auth.ErrUserNotFound, models.KindNotFound, "User not found"},
		{auth.ErrInvalidCredentials, models.KindUnauthorized, "Invalid credentials"},
	}
	refreshFailures = []authFailure{
		{auth.ErrInvalidRefreshToken, models.KindUnauthorized, "Invalid refresh token"},
		{auth.ErrRefreshTokenExpired, models.KindUnauthorized, "Refresh token has expired"},
		{auth.ErrUserNotFound, models.KindUnauthorized, "User not found"},
	}
	profileFailures = []authFailure{
		{auth.ErrUserNotFound, models.KindNotFound, "User not found"},
		{auth.ErrEmailTaken, models.KindConflict, "User with this email already exists"},
		{auth.ErrInvalidCredentials, models.KindUnauthorized, "Current password is incorrect"},
	}
)

// AuthHandler serves /api/auth.
type AuthHandler struct {
	auth *auth.Service
	log  zerolog.Logger
}

func NewAuthHandler(svc *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, log: logger}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tokens, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, "Please provide all required fields", registerFailures)
		return
	}
	response.Created(w, r, "/api/auth/profile", tokens)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tokens, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, "Please provide email and password", loginFailures)
		return
	}
	response.JSON(w, r, http.StatusOK, tokens)
}

// RefreshToken handles POST /api/auth/refresh.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	req, ok := h.refreshRequest(w, r)
	if !ok {
		return
	}
	tokens, err := h.auth.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err, "", refreshFailures)
		return
	}
	response.JSON(w, r, http.StatusOK, tokens)
}

// Logout handles POST /api/auth/logout by revoking one refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.refreshRequest(w, r)
	if !ok {
		return
	}
	if err := h.auth.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	response.NoContent(w, r)
}

// LogoutAll handles POST /api/auth/logout-all.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.auth.RevokeAllTokens(r.Context(), userID); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	response.NoContent(w, r)
}

// GetProfile handles GET /api/auth/profile.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.auth.GetProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "", profileFailures)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ProfileResponse{User: user})
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req auth.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.fail(w, r, err, "Invalid profile update", profileFailures)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ProfileResponse{User: user})
}

func (h *AuthHandler) refreshRequest(w http.ResponseWriter, r *http.Request) (auth.RefreshTokenRequest, bool) {
	var req auth.RefreshTokenRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "refreshToken is required", authFieldErrors(errs))
		return req, false
	}
	return req, true
}

// fail answers validation errors with invalidDetail, known errors from
// table, and everything else with a logged 500.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error, invalidDetail string, table []authFailure) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		response.BadRequest(w, r, invalidDetail, authFieldErrors(verr.Errors))
		return
	}
	for _, f := range table {
		if errors.Is(err, f.err) {
			response.Problem(w, r, f.kind, f.detail)
			return
		}
	}
	h.log.Error().Err(err).Str("path", r.URL.Path).Str("user_id", GetUserID(r.Context())).Msg("auth request failed")
	response.InternalError(w, r, msgServerError)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "Not authorized")
	}
	return userID, userID != ""
}

func authFieldErrors(errs []auth.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(errs))
	for i, e := range errs {
		out[i] = models.FieldError{Field: e.Field, Message: e.Message, Code: e.Code}
	}
	return out
}
