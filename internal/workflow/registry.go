package workflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// Store persists view state so a view session survives between requests and restarts.
// Get methods return nil, nil when nothing is saved.
type Store interface {
	GetWizardState(viewID string) (*model.WizardState, error)
	PutWizardState(viewID string, s model.WizardState) error
	GetBoardState(viewID string) (*model.BoardState, error)
	PutBoardState(viewID string, s model.BoardState) error
}

type entry struct {
	wizard   *Wizard
	board    *Board
	lastUsed time.Time
}

// Registry keeps the live wizard and board of every view session in memory and
// writes their state through to the Store.
type Registry struct {
	api   API
	store Store
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry. store may be nil, in which case state lives
// only in memory.
func NewRegistry(api API, store Store) *Registry {
	return &Registry{
		api:     api,
		store:   store,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (r *Registry) entry(viewID string) *entry {
	e, ok := r.entries[viewID]
	if !ok {
		e = &entry{}
		r.entries[viewID] = e
	}
	e.lastUsed = r.now()
	return e
}

// MountWizard starts a fresh wizard for the view session, replacing any previous one.
func (r *Registry) MountWizard(viewID string) (*Wizard, error) {
	w := NewWizard(r.api)
	r.mu.Lock()
	r.entry(viewID).wizard = w
	r.mu.Unlock()
	return w, r.SaveWizard(viewID, w)
}

// Wizard returns the view session's wizard, restoring it from the store or
// starting a fresh one if none exists.
func (r *Registry) Wizard(viewID string) (*Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(viewID)
	if e.wizard != nil {
		return e.wizard, nil
	}
	if r.store != nil {
		s, err := r.store.GetWizardState(viewID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			e.wizard = RestoreWizard(r.api, *s)
			return e.wizard, nil
		}
	}
	e.wizard = NewWizard(r.api)
	return e.wizard, nil
}

// SaveWizard writes the wizard state to the store.
func (r *Registry) SaveWizard(viewID string, w *Wizard) error {
	if r.store == nil {
		return nil
	}
	return r.store.PutWizardState(viewID, w.State())
}

// Board returns the view session's board, restoring it from the store or
// creating an unloaded one.
func (r *Registry) Board(viewID string) (*Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(viewID)
	if e.board != nil {
		return e.board, nil
	}
	if r.store != nil {
		s, err := r.store.GetBoardState(viewID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			e.board = RestoreBoard(r.api, *s)
			return e.board, nil
		}
	}
	e.board = NewBoard(r.api)
	return e.board, nil
}

// SaveBoard writes the board state to the store.
func (r *Registry) SaveBoard(viewID string, b *Board) error {
	if r.store == nil {
		return nil
	}
	return r.store.PutBoardState(viewID, b.State())
}

// Sweep drops in-memory entries not used since cutoff. Saved state stays in the store.
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	if n > 0 {
		slog.Debug("swept idle view sessions", "count", n)
	}
	return n
}

// Len returns the number of live view sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
