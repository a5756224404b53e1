package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// CreateAuthSession creates a new auth session token for the operator.
func (s *Store) CreateAuthSession(operator string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	_, err = s.db.Exec(
		`INSERT INTO auth_sessions (id, operator, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		token, operator, now.Unix(), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetAuthSession returns the auth session for the given token, or nil if not found/expired.
func (s *Store) GetAuthSession(token string) (*model.AuthSession, error) {
	var (
		sess             model.AuthSession
		created, expires int64
	)
	err := s.db.QueryRow(
		`SELECT id, operator, created_at, expires_at FROM auth_sessions WHERE id = $1`, token,
	).Scan(&sess.ID, &sess.Operator, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.ExpiresAt = time.Unix(expires, 0)
	if s.now().After(sess.ExpiresAt) {
		_ = s.DeleteAuthSession(token)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAuthSession removes a session token.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = $1`, token)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
