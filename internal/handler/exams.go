package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/pavelanni/sheetgrader/internal/handler/views"
	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/workflow"
)

func (h *Handler) board(w http.ResponseWriter, r *http.Request) (*workflow.Board, bool) {
	viewID := model.ViewSessionFromContext(r.Context())
	b, err := h.registry.Board(viewID)
	if err != nil {
		slog.Error("failed to restore board", "view", viewID, "error", err)
		h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
		return nil, false
	}
	return b, true
}

func (h *Handler) saveBoard(r *http.Request, b *workflow.Board) {
	viewID := model.ViewSessionFromContext(r.Context())
	if err := h.registry.SaveBoard(viewID, b); err != nil {
		slog.Error("failed to save board state", "view", viewID, "error", err)
	}
}

// handleExamsPage mounts the board: the exam list is fetched again and every exam
// starts unprocessed.
func (h *Handler) handleExamsPage(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	_ = b.Load(r.Context())
	h.saveBoard(r, b)
	h.render(w, r, http.StatusOK, views.ExamsPage(b.State()))
}

func (h *Handler) handleExamResponses(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	exam := urlParam(r, "name")
	batch, err := parseUploadBatch(r, model.UploadImages, exam)
	if err != nil {
		h.formError(w, r, err)
		return
	}
	err = b.UploadResponses(r.Context(), exam, batch.Files)
	if err == nil {
		slog.Info("responses graded", "exam", exam, "files", len(batch.Files))
	}
	h.afterBoardAction(w, r, b, exam, err)
}

func (h *Handler) handleExamReport(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	exam := urlParam(r, "name")
	err := b.GenerateReport(r.Context(), exam)
	h.afterBoardAction(w, r, b, exam, err)
}

func (h *Handler) handleExamDownload(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	exam := urlParam(r, "name")
	d, err := b.Download(r.Context(), exam)
	if err != nil {
		h.afterBoardAction(w, r, b, exam, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	if _, err := w.Write(d.Data); err != nil {
		slog.Warn("failed to write report", "exam", exam, "error", err)
	}
}

// afterBoardAction saves the board and re-renders it. htmx requests get only the
// affected exam card, or only the notice when the action failed.
func (h *Handler) afterBoardAction(w http.ResponseWriter, r *http.Request, b *workflow.Board, exam string, err error) {
	if errors.Is(err, workflow.ErrBusy) {
		h.busy(w, r)
		return
	}
	h.saveBoard(r, b)

	s := b.State()
	if isHTMX(r) {
		if err != nil {
			n := s.Notice
			if n.Empty() {
				n = workflow.NoticeFor(err, msgUnexpected)
			}
			h.notify(w, r, n)
			return
		}
		for i, e := range s.Exams {
			if e.Name == exam {
				h.render(w, r, http.StatusOK, views.ExamCard(i, e, s))
				return
			}
		}
		h.notify(w, r, s.Notice)
		return
	}
	h.render(w, r, http.StatusOK, views.ExamsPage(s))
}

func (h *Handler) handleExamDetail(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	exam := urlParam(r, "name")
	d, err := b.Detail(r.Context(), exam)
	var n *model.Notice
	if err != nil {
		n = workflow.NoticeFor(err, workflow.MsgLoadExam)
	}
	h.render(w, r, http.StatusOK, views.ExamDetailPage(exam, d, n))
}

// handleExamImage proxies a stored image so the browser never talks to the backend.
func (h *Handler) handleExamImage(w http.ResponseWriter, r *http.Request) {
	exam, image := urlParam(r, "name"), urlParam(r, "image")
	data, ctype, err := h.backend.FetchImage(r.Context(), exam, image)
	if err != nil {
		slog.Warn("failed to fetch image", "exam", exam, "image", image, "error", err)
		http.Error(w, appI18n.T(r.Context(), workflow.MsgLoadExam), http.StatusBadGateway)
		return
	}
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}
