package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/smartrunning/smartrunning/internal/api/middleware"
	"github.com/smartrunning/smartrunning/internal/api/response"
)

const (
	maxBodyBytes   = 1 << 20
	msgInvalidJSON = "Invalid JSON body"
	msgServerError = "Server error"
)

// GetUserID returns the caller set by the auth middleware.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// decodeJSON reads a bounded JSON body into dst and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		response.BadRequest(w, r, msgInvalidJSON, nil)
		return false
	}
	return true
}
