package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/sheetgrader/internal/handler/views"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
	"github.com/pavelanni/sheetgrader/internal/workflow"
)

// apiError is the one error shape of the JSON API, whatever the backend sent.
type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write JSON response", "error", err)
	}
}

// writeAPIError maps a backend error to a status and a display message: backend
// text verbatim for business errors, the localized fallback otherwise.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusBadGateway
	var be *omr.BusinessError
	if errors.As(err, &be) {
		status = http.StatusUnprocessableEntity
	}
	msg := views.NoticeText(r.Context(), workflow.NoticeFor(err, fallback))
	writeJSON(w, status, apiError{Error: msg})
}

func (h *Handler) handleAPIExams(w http.ResponseWriter, r *http.Request) {
	names, err := h.backend.ListExams(r.Context())
	if err != nil {
		writeAPIError(w, r, err, workflow.MsgLoadExams)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"exams": names})
}

// handleAPIReport returns an exam's report. With ?generate=true the report is
// generated first; the fetch only happens if generation succeeded.
func (h *Handler) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	exam := urlParam(r, "name")
	if r.URL.Query().Get("generate") == "true" {
		if err := h.backend.GenerateReport(r.Context(), exam); err != nil {
			writeAPIError(w, r, err, workflow.MsgGenerateReport)
			return
		}
	}
	report, err := h.backend.FetchReport(r.Context(), exam)
	if err != nil {
		writeAPIError(w, r, err, workflow.MsgFetchReport)
		return
	}
	writeJSON(w, http.StatusOK, model.NewReportExport(exam, report, time.Now().UTC()))
}

type healthStatus struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Database string `json:"database"`
}

// handleHealth reports on the backend and database. Status is "degraded" when
// either check fails; the code stays 200 so the UI process is not restarted
// for a backend outage it cannot fix.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st := healthStatus{Status: "ok", Backend: "ok", Database: "ok"}
	if err := h.backend.Ping(ctx); err != nil {
		slog.Warn("backend health check failed", "error", err)
		st.Backend = "unreachable"
		st.Status = "degraded"
	}
	if err := h.store.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		st.Database = "error"
		st.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, st)
}
