package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// CreateViewSession registers a new view session and returns its ID.
func (s *Store) CreateViewSession() (string, error) {
	id := uuid.NewString()
	now := s.now()
	_, err := s.db.Exec(
		`INSERT INTO view_sessions (id, created_at, expires_at) VALUES ($1, $2, $3)`,
		id, now.Unix(), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ViewSessionExists reports whether id names a live view session.
func (s *Store) ViewSessionExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM view_sessions WHERE id = $1 AND expires_at >= $2`, id, s.now().Unix(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// GetWizardState returns the saved wizard state, or nil if none is saved.
func (s *Store) GetWizardState(viewID string) (*model.WizardState, error) {
	var st model.WizardState
	ok, err := s.getJSON("wizard_json", viewID, &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// PutWizardState saves the wizard state and extends the session.
func (s *Store) PutWizardState(viewID string, st model.WizardState) error {
	return s.putJSON("wizard_json", viewID, st)
}

// GetBoardState returns the saved board state, or nil if none is saved.
func (s *Store) GetBoardState(viewID string) (*model.BoardState, error) {
	var st model.BoardState
	ok, err := s.getJSON("board_json", viewID, &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// PutBoardState saves the board state and extends the session.
func (s *Store) PutBoardState(viewID string, st model.BoardState) error {
	return s.putJSON("board_json", viewID, st)
}

// column is one of the two fixed snapshot columns, never user input.
func (s *Store) getJSON(column, viewID string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT `+column+` FROM view_sessions WHERE id = $1 AND expires_at >= $2`,
		viewID, s.now().Unix(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == "") {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s for %s: %w", column, viewID, err)
	}
	return true, nil
}

func (s *Store) putJSON(column, viewID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	now := s.now()
	_, err = s.db.Exec(
		`INSERT INTO view_sessions (id, `+column+`, created_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET `+column+` = EXCLUDED.`+column+`, expires_at = EXCLUDED.expires_at`,
		viewID, string(data), now.Unix(), now.Add(s.ttl).Unix(),
	)
	return err
}
