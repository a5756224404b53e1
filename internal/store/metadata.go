package store

import (
	"database/sql"
	"errors"
)

// KeyOperatorPasswordHash holds the bcrypt hash written by "sheetgrader passwd".
const KeyOperatorPasswordHash = "operator_password_hash"

// SetMetadata upserts a key-value pair.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// OperatorPasswordHash returns the stored operator password hash, or "" when login
// has not been set up.
func (s *Store) OperatorPasswordHash() (string, error) {
	return s.GetMetadata(KeyOperatorPasswordHash)
}

// SetOperatorPasswordHash stores the operator password hash.
func (s *Store) SetOperatorPasswordHash(hash string) error {
	return s.SetMetadata(KeyOperatorPasswordHash, hash)
}
