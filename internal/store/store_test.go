package store

import (
	"testing"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(t.Context(), Driver("oracle"), ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestViewSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateViewSession()
	if err != nil {
		t.Fatalf("CreateViewSession: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}
	ok, err := s.ViewSessionExists(id)
	if err != nil || !ok {
		t.Fatalf("ViewSessionExists = %v, %v", ok, err)
	}
	ok, _ = s.ViewSessionExists("nope")
	if ok {
		t.Error("unknown session should not exist")
	}

	// Nothing saved yet.
	w, err := s.GetWizardState(id)
	if err != nil {
		t.Fatalf("GetWizardState: %v", err)
	}
	if w != nil {
		t.Errorf("expected nil wizard state, got %+v", w)
	}
}

func TestWizardStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateViewSession()

	want := model.WizardState{
		Step:      model.StepReviewingKey,
		ExamName:  "Midterm1",
		AnswerKey: model.AnswerKey{"Q1": "A", "Q2": "C"},
		Notice:    &model.Notice{Text: "Exam already exists"},
	}
	if err := s.PutWizardState(id, want); err != nil {
		t.Fatalf("PutWizardState: %v", err)
	}
	got, err := s.GetWizardState(id)
	if err != nil {
		t.Fatalf("GetWizardState: %v", err)
	}
	if got == nil || got.Step != want.Step || got.ExamName != want.ExamName {
		t.Fatalf("got %+v", got)
	}
	if got.AnswerKey["Q2"] != "C" || got.Notice == nil || got.Notice.Text != "Exam already exists" {
		t.Errorf("got %+v", got)
	}

	// Overwrite keeps a single row.
	want.Step = model.StepDone
	if err := s.PutWizardState(id, want); err != nil {
		t.Fatalf("PutWizardState: %v", err)
	}
	got, _ = s.GetWizardState(id)
	if got.Step != model.StepDone {
		t.Errorf("step = %q, want done", got.Step)
	}
}

func TestBoardStateIndependentOfWizard(t *testing.T) {
	s := newTestStore(t)

	// Put without CreateViewSession creates the row.
	board := model.BoardState{
		Loaded: true,
		Exams: []model.Exam{{
			Name:      "Final",
			Processed: true,
			Report:    model.Report{"a.png": {Score: 7.5}},
		}},
		Selected: "Final",
	}
	if err := s.PutBoardState("v1", board); err != nil {
		t.Fatalf("PutBoardState: %v", err)
	}
	if err := s.PutWizardState("v1", model.WizardState{Step: model.StepNamingExam}); err != nil {
		t.Fatalf("PutWizardState: %v", err)
	}

	got, err := s.GetBoardState("v1")
	if err != nil {
		t.Fatalf("GetBoardState: %v", err)
	}
	if got == nil || len(got.Exams) != 1 || got.Exams[0].Report["a.png"].Score != 7.5 {
		t.Fatalf("got %+v", got)
	}
	if got.Selected != "Final" || !got.Loaded {
		t.Errorf("got %+v", got)
	}
}

func TestExpiredStateIsIgnored(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.PutWizardState("v", model.WizardState{Step: model.StepDone}); err != nil {
		t.Fatalf("PutWizardState: %v", err)
	}
	now = now.Add(2 * time.Hour)

	got, err := s.GetWizardState("v")
	if err != nil {
		t.Fatalf("GetWizardState: %v", err)
	}
	if got != nil {
		t.Errorf("expired state returned: %+v", got)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)

	token, err := s.CreateAuthSession("operator")
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.Operator != "operator" {
		t.Fatalf("got %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, _ = s.GetAuthSession(token)
	if sess != nil {
		t.Error("expected nil after delete")
	}

	sess, err = s.GetAuthSession("does-not-exist")
	if err != nil || sess != nil {
		t.Errorf("unknown token = %+v, %v", sess, err)
	}
}

func TestAuthSessionExpiry(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	token, _ := s.CreateAuthSession("operator")
	now = now.Add(61 * time.Minute)

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess != nil {
		t.Error("expired session should not be returned")
	}
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old, _ := s.CreateViewSession()
	_, _ = s.CreateAuthSession("operator")

	now = now.Add(90 * time.Minute)
	fresh, _ := s.CreateViewSession()

	n, err := s.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d rows, want 2", n)
	}
	if ok, _ := s.ViewSessionExists(old); ok {
		t.Error("old session should be gone")
	}
	if ok, _ := s.ViewSessionExists(fresh); !ok {
		t.Error("fresh session should remain")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Errorf("missing key = %q, %v", v, err)
	}

	if err := s.SetOperatorPasswordHash("hash1"); err != nil {
		t.Fatalf("SetOperatorPasswordHash: %v", err)
	}
	if err := s.SetOperatorPasswordHash("hash2"); err != nil {
		t.Fatalf("SetOperatorPasswordHash: %v", err)
	}
	h, err := s.OperatorPasswordHash()
	if err != nil {
		t.Fatalf("OperatorPasswordHash: %v", err)
	}
	if h != "hash2" {
		t.Errorf("hash = %q, want hash2", h)
	}
}
