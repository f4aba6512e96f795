package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type savedSession struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// sessionStore keeps the token pair between invocations, readable by the owner only.
type sessionStore struct {
	path string
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".laundryctl-session.json"
	}
	return filepath.Join(dir, "laundryctl", "session.json")
}

// Load returns nil when nothing has been saved.
func (s *sessionStore) Load() (*savedSession, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var saved savedSession
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("session file %s is corrupt: %w", s.path, err)
	}
	return &saved, nil
}

func (s *sessionStore) Save(saved savedSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *sessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
