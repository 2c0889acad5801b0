package models

import "github.com/smartrunning/smartrunning/internal/auth"

// ProfileResponse is the body of GET and PUT /api/auth/profile.
type ProfileResponse struct {
	User *auth.User `json:"user"`
}
