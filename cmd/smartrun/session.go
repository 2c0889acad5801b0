package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/smartrunning/smartrunning/internal/apiclient"
	"github.com/smartrunning/smartrunning/internal/auth"
)

const (
	envSession  = "SMARTRUN_SESSION"
	envToken    = "SMARTRUN_TOKEN"
	envPassword = "SMARTRUN_PASSWORD"
)

// savedSession is the on-disk shape of a session.
type savedSession struct {
	BaseURL string     `json:"baseUrl"`
	Token   string     `json:"token,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

// sessionStore persists the session between invocations.
type sessionStore struct {
	path string
}

func newSessionStore(getenv env) *sessionStore {
	if p := getenv(envSession); p != "" {
		return &sessionStore{path: p}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return &sessionStore{path: filepath.Join(dir, "smartrun", "session.json")}
}

// Load returns the stored session, or a fresh one when none exists.
func (s *sessionStore) Load() (*apiclient.Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return apiclient.NewSession(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", s.path, err)
	}
	session := apiclient.NewSession(saved.BaseURL)
	session.Token = saved.Token
	session.User = saved.User
	return session, nil
}

// Save writes the session with owner-only permissions.
func (s *sessionStore) Save(session *apiclient.Session) error {
	data, err := json.MarshalIndent(savedSession{
		BaseURL: session.BaseURL,
		Token:   session.Token,
		User:    session.User,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
