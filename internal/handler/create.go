package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/sheetgrader/internal/handler/views"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/workflow"
)

// handleCreatePage mounts a fresh wizard: every visit starts at the naming step.
func (h *Handler) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	viewID := model.ViewSessionFromContext(r.Context())
	wz, err := h.registry.MountWizard(viewID)
	if err != nil {
		slog.Error("failed to save wizard state", "view", viewID, "error", err)
	}
	h.render(w, r, http.StatusOK, views.CreatePage(wz.State()))
}

func (h *Handler) wizard(w http.ResponseWriter, r *http.Request) (*workflow.Wizard, bool) {
	viewID := model.ViewSessionFromContext(r.Context())
	wz, err := h.registry.Wizard(viewID)
	if err != nil {
		slog.Error("failed to restore wizard", "view", viewID, "error", err)
		h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
		return nil, false
	}
	return wz, true
}

func (h *Handler) handleSubmitName(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	err := wz.SubmitName(r.Context(), r.FormValue("exam_name"))
	h.afterWizardStep(w, r, wz, err)
}

func (h *Handler) handleUploadSolution(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	batch, err := parseUploadBatch(r, model.UploadSolution, wz.State().ExamName)
	if err != nil {
		h.formError(w, r, err)
		return
	}
	err = wz.UploadSolution(r.Context(), batch.Files)
	h.afterWizardStep(w, r, wz, err)
}

func (h *Handler) handleWizardResponses(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	batch, err := parseUploadBatch(r, model.UploadImages, wz.State().ExamName)
	if err != nil {
		h.formError(w, r, err)
		return
	}
	err = wz.UploadResponses(r.Context(), batch.Files)
	h.afterWizardStep(w, r, wz, err)
}

// afterWizardStep saves the wizard and shows its new state. Step failures are already
// part of that state as a notice; htmx requests then get only the notice, so the
// panel and the files selected in it stay as they are.
func (h *Handler) afterWizardStep(w http.ResponseWriter, r *http.Request, wz *workflow.Wizard, err error) {
	viewID := model.ViewSessionFromContext(r.Context())
	if errors.Is(err, workflow.ErrBusy) {
		h.busy(w, r)
		return
	}
	if saveErr := h.registry.SaveWizard(viewID, wz); saveErr != nil {
		slog.Error("failed to save wizard state", "view", viewID, "error", saveErr)
	}

	s := wz.State()
	if s.Step == model.StepDone {
		slog.Info("exam created", "exam", s.ExamName)
		h.redirect(w, r, "/exams")
		return
	}
	if isHTMX(r) {
		if err != nil && !s.Notice.Empty() {
			h.notify(w, r, s.Notice)
			return
		}
		h.render(w, r, http.StatusOK, views.WizardPanel(s))
		return
	}
	h.render(w, r, http.StatusOK, views.CreatePage(s))
}
