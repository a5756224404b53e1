package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
)

var png = model.UploadFile{Name: "sheet.png", ContentType: "image/png", Data: []byte("x")}

func TestSubmitName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		createErr error
		wantStep  model.WizardStep
		wantCalls int
		wantMsgID string
		wantText  string
	}{
		{"valid", "Midterm1", nil, model.StepAwaitingSolution, 1, "", ""},
		{"surrounding spaces", "  Midterm1 ", nil, model.StepAwaitingSolution, 1, "", ""},
		{"empty", "", nil, model.StepNamingExam, 0, MsgExamNameRequired, ""},
		{"whitespace only", " \t ", nil, model.StepNamingExam, 0, MsgExamNameRequired, ""},
		{"backend error field", "Midterm1", &omr.BusinessError{Status: 200, Message: "Exam already exists"},
			model.StepNamingExam, 1, "", "Exam already exists"},
		{"network failure", "Midterm1", &omr.TransportError{Err: errors.New("connection refused")},
			model.StepNamingExam, 1, MsgCreateExam, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{createErr: tt.createErr}
			w := NewWizard(api)
			_ = w.SubmitName(context.Background(), tt.input)

			s := w.State()
			if s.Step != tt.wantStep {
				t.Errorf("step = %q, want %q", s.Step, tt.wantStep)
			}
			if got := len(api.calls); got != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantMsgID == "" && tt.wantText == "" {
				if !s.Notice.Empty() {
					t.Errorf("unexpected notice %+v", s.Notice)
				}
				return
			}
			if s.Notice == nil || s.Notice.MsgID != tt.wantMsgID || s.Notice.Text != tt.wantText {
				t.Errorf("notice = %+v, want msgID %q text %q", s.Notice, tt.wantMsgID, tt.wantText)
			}
		})
	}
}

func TestSubmitNameSendsTrimmedName(t *testing.T) {
	api := &fakeAPI{}
	w := NewWizard(api)
	if err := w.SubmitName(context.Background(), "  Final "); err != nil {
		t.Fatalf("SubmitName: %v", err)
	}
	if api.count("create:Final") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
	if w.State().ExamName != "Final" {
		t.Errorf("ExamName = %q", w.State().ExamName)
	}
}

func TestWizardHappyPath(t *testing.T) {
	api := &fakeAPI{key: model.AnswerKey{"Q1": "A", "Q2": "C"}}
	w := NewWizard(api)
	ctx := context.Background()

	if err := w.SubmitName(ctx, "Midterm1"); err != nil {
		t.Fatalf("SubmitName: %v", err)
	}
	if err := w.UploadSolution(ctx, []model.UploadFile{png}); err != nil {
		t.Fatalf("UploadSolution: %v", err)
	}

	s := w.State()
	if s.Step != model.StepReviewingKey {
		t.Fatalf("step = %q, want reviewing key", s.Step)
	}
	entries := s.AnswerKey.Entries()
	if len(entries) != 2 || entries[0] != (model.KeyEntry{Question: "Q1", Choice: "A"}) ||
		entries[1] != (model.KeyEntry{Question: "Q2", Choice: "C"}) {
		t.Errorf("answer key entries = %v", entries)
	}

	files := []model.UploadFile{png, png, png}
	if err := w.UploadResponses(ctx, files); err != nil {
		t.Fatalf("UploadResponses: %v", err)
	}
	if w.State().Step != model.StepDone {
		t.Errorf("step = %q, want done", w.State().Step)
	}
	if api.count("solution:Midterm1") != 1 || api.count("responses:Midterm1") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestWizardGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("solution required", func(t *testing.T) {
		api := &fakeAPI{}
		w := RestoreWizard(api, model.WizardState{Step: model.StepAwaitingSolution, ExamName: "M"})
		err := w.UploadSolution(ctx, nil)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.MsgID != MsgSolutionRequired {
			t.Errorf("err = %v", err)
		}
		if len(api.calls) != 0 {
			t.Errorf("no request expected, got %v", api.calls)
		}
	})

	t.Run("single solution", func(t *testing.T) {
		w := RestoreWizard(&fakeAPI{}, model.WizardState{Step: model.StepAwaitingSolution, ExamName: "M"})
		err := w.UploadSolution(ctx, []model.UploadFile{png, png})
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.MsgID != MsgSingleSolution {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("responses required", func(t *testing.T) {
		api := &fakeAPI{}
		w := RestoreWizard(api, model.WizardState{Step: model.StepReviewingKey, ExamName: "M"})
		err := w.UploadResponses(ctx, nil)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.MsgID != MsgResponsesRequired {
			t.Errorf("err = %v", err)
		}
		if w.State().Step != model.StepReviewingKey {
			t.Error("step should not change")
		}
	})

	t.Run("wrong step", func(t *testing.T) {
		w := NewWizard(&fakeAPI{})
		if err := w.UploadSolution(ctx, []model.UploadFile{png}); !errors.Is(err, ErrWrongStep) {
			t.Errorf("err = %v, want ErrWrongStep", err)
		}
	})
}

func TestWizardFailuresKeepState(t *testing.T) {
	ctx := context.Background()

	t.Run("solution upload fails", func(t *testing.T) {
		api := &fakeAPI{solErr: &omr.TransportError{Err: errors.New("boom")}}
		w := RestoreWizard(api, model.WizardState{Step: model.StepAwaitingSolution, ExamName: "M"})
		_ = w.UploadSolution(ctx, []model.UploadFile{png})
		s := w.State()
		if s.Step != model.StepAwaitingSolution || s.ExamName != "M" {
			t.Errorf("state = %+v", s)
		}
		if s.Notice == nil || s.Notice.MsgID != MsgUploadSolution {
			t.Errorf("notice = %+v", s.Notice)
		}
	})

	t.Run("responses upload fails", func(t *testing.T) {
		api := &fakeAPI{uploadErr: &omr.BusinessError{Message: "disk full"}}
		key := model.AnswerKey{"Q1": "A"}
		w := RestoreWizard(api, model.WizardState{Step: model.StepReviewingKey, ExamName: "M", AnswerKey: key})
		_ = w.UploadResponses(ctx, []model.UploadFile{png})
		s := w.State()
		if s.Step != model.StepReviewingKey || s.AnswerKey["Q1"] != "A" {
			t.Errorf("state = %+v", s)
		}
		if s.Notice == nil || s.Notice.Text != "disk full" {
			t.Errorf("notice = %+v", s.Notice)
		}
	})

	t.Run("retry clears notice", func(t *testing.T) {
		api := &fakeAPI{createErr: &omr.BusinessError{Message: "nope"}}
		w := NewWizard(api)
		_ = w.SubmitName(ctx, "A")
		api.createErr = nil
		if err := w.SubmitName(ctx, "A"); err != nil {
			t.Fatalf("SubmitName: %v", err)
		}
		if !w.State().Notice.Empty() {
			t.Errorf("notice should be cleared, got %+v", w.State().Notice)
		}
	})
}

func TestWizardBusy(t *testing.T) {
	api := &fakeAPI{started: make(chan struct{}, 1), block: make(chan struct{})}
	w := NewWizard(api)

	errc := make(chan error, 1)
	go func() { errc <- w.SubmitName(context.Background(), "Midterm1") }()
	<-api.started

	if !w.Busy() {
		t.Error("wizard should be busy while a request is in flight")
	}
	if err := w.SubmitName(context.Background(), "Midterm1"); !errors.Is(err, ErrBusy) {
		t.Errorf("second submit err = %v, want ErrBusy", err)
	}

	close(api.block)
	if err := <-errc; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if api.count("create:Midterm1") != 1 {
		t.Errorf("expected exactly one create request, got %v", api.calls)
	}
	if w.Busy() {
		t.Error("wizard should be idle after the request completes")
	}
}

func TestStateIsACopy(t *testing.T) {
	w := RestoreWizard(&fakeAPI{}, model.WizardState{Step: model.StepReviewingKey, AnswerKey: model.AnswerKey{"Q1": "A"}})
	s := w.State()
	s.AnswerKey["Q1"] = "Z"
	if w.State().AnswerKey["Q1"] != "A" {
		t.Error("State must return a copy of the answer key")
	}
}
