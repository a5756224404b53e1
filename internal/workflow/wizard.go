package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// Wizard drives exam creation: NamingExam -> AwaitingSolution -> ReviewingKey -> Done.
// A failed step leaves the state where it was; nothing is rolled back.
type Wizard struct {
	api API

	mu    sync.Mutex
	state model.WizardState
	busy  bool
}

// NewWizard returns a wizard in the NamingExam step.
func NewWizard(api API) *Wizard {
	return &Wizard{api: api, state: model.WizardState{Step: model.StepNamingExam}}
}

// RestoreWizard resumes a wizard from a saved state.
func RestoreWizard(api API, s model.WizardState) *Wizard {
	if s.Step == "" {
		s.Step = model.StepNamingExam
	}
	return &Wizard{api: api, state: s}
}

// State returns a copy of the current state.
func (w *Wizard) State() model.WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	if s.AnswerKey != nil {
		s.AnswerKey = make(model.AnswerKey, len(w.state.AnswerKey))
		for k, v := range w.state.AnswerKey {
			s.AnswerKey[k] = v
		}
	}
	return s
}

// Busy reports whether a step request is in flight.
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// SubmitName creates the exam. The name must contain a non-space character.
func (w *Wizard) SubmitName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := w.begin(model.StepNamingExam); err != nil {
		return err
	}
	if name == "" {
		err := &ValidationError{MsgID: MsgExamNameRequired}
		w.finish(func(s *model.WizardState) { s.ExamName = ""; s.Notice = noticeFor(err, "") })
		return err
	}

	err := w.api.CreateExam(ctx, name)
	w.finish(func(s *model.WizardState) {
		s.ExamName = name
		if err != nil {
			s.Notice = noticeFor(err, MsgCreateExam)
			return
		}
		s.Step = model.StepAwaitingSolution
	})
	return err
}

// UploadSolution sends the answer-key image and keeps the key the backend read.
func (w *Wizard) UploadSolution(ctx context.Context, files []model.UploadFile) error {
	if err := w.begin(model.StepAwaitingSolution); err != nil {
		return err
	}
	batch := model.UploadBatch{Kind: model.UploadSolution, ExamName: w.examName(), Files: files}
	if err := batch.Validate(); err != nil {
		verr := &ValidationError{MsgID: MsgSolutionRequired}
		if errors.Is(err, model.ErrTooManyFiles) {
			verr.MsgID = MsgSingleSolution
		}
		w.finish(func(s *model.WizardState) { s.Notice = noticeFor(verr, "") })
		return verr
	}

	key, err := w.api.UploadSolution(ctx, batch.ExamName, batch.Files[0])
	w.finish(func(s *model.WizardState) {
		if err != nil {
			s.Notice = noticeFor(err, MsgUploadSolution)
			return
		}
		s.AnswerKey = key
		s.Step = model.StepReviewingKey
	})
	return err
}

// UploadResponses sends the student response images and completes the wizard.
func (w *Wizard) UploadResponses(ctx context.Context, files []model.UploadFile) error {
	if err := w.begin(model.StepReviewingKey); err != nil {
		return err
	}
	batch := model.UploadBatch{Kind: model.UploadImages, ExamName: w.examName(), Files: files}
	if err := batch.Validate(); err != nil {
		verr := &ValidationError{MsgID: MsgResponsesRequired}
		w.finish(func(s *model.WizardState) { s.Notice = noticeFor(verr, "") })
		return verr
	}

	err := w.api.UploadResponses(ctx, batch.ExamName, batch.Files)
	w.finish(func(s *model.WizardState) {
		if err != nil {
			s.Notice = noticeFor(err, MsgUploadResponses)
			return
		}
		s.Step = model.StepDone
	})
	return err
}

// begin marks the wizard busy if it is idle and at the expected step.
func (w *Wizard) begin(step model.WizardStep) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.state.Step != step {
		return ErrWrongStep
	}
	w.busy = true
	w.state.Notice = nil
	return nil
}

func (w *Wizard) finish(update func(s *model.WizardState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	update(&w.state)
	w.busy = false
}

func (w *Wizard) examName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.ExamName
}
