package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pavelanni/sheetgrader/internal/handler/views"
	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
	"github.com/pavelanni/sheetgrader/internal/store"
	"github.com/pavelanni/sheetgrader/internal/workflow"
)

// DefaultMaxUploadBytes bounds a single upload request. A batch of phone
// photos of answer sheets easily passes 10 MiB.
const DefaultMaxUploadBytes = 100 << 20

// msgUnexpected is shown for server faults that have no message of their own.
const msgUnexpected = "ErrUnexpected"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	backend  *omr.Client
	registry *workflow.Registry
	config   model.AppConfig
}

// New creates a new Handler.
func New(s *store.Store, c *omr.Client, cfg model.AppConfig) (*Handler, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	if c == nil {
		return nil, errors.New("backend client is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		store:    s,
		backend:  c,
		registry: workflow.NewRegistry(c, s),
		config:   cfg,
	}, nil
}

// Registry exposes the live view sessions for periodic sweeping.
func (h *Handler) Registry() *workflow.Registry {
	return h.registry
}

// Router builds the full HTTP handler, mounted under the configured base path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	basePath := h.config.BasePath
	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.NotFound(h.handleNotFound)
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: len(h.config.CORSOrigins) > 0,
			MaxAge:           300,
		}))
		r.Use(h.requireAuthAPI)
		r.Get("/exams", h.handleAPIExams)
		r.Get("/exams/{name}/report", h.handleAPIReport)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.limitBody)
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Use(h.viewSessionMiddleware)
			r.Post("/logout", h.handleLogout)

			r.Get("/", h.handleHome)
			r.Get("/dashboard", h.handleDashboard)

			r.Get("/create", h.handleCreatePage)
			r.Post("/create/exam", h.handleSubmitName)
			r.Post("/create/solution", h.handleUploadSolution)
			r.Post("/create/responses", h.handleWizardResponses)

			r.Get("/exams", h.handleExamsPage)
			r.Get("/exams/{name}", h.handleExamDetail)
			r.Get("/exams/{name}/images/{image}", h.handleExamImage)
			r.Post("/exams/{name}/responses", h.handleExamResponses)
			r.Post("/exams/{name}/report", h.handleExamReport)
			r.Post("/exams/{name}/download", h.handleExamDownload)
		})
	})
}

// BasePathMiddleware makes the base path available to views for building links.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// redirect sends the browser to an app path; htmx requests get HX-Redirect instead of 303.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, p string) {
	target := h.path(p)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) busy(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, http.StatusConflict, &model.Notice{MsgID: workflow.MsgBusy})
}

// fail answers a request that could not be served. Full page loads get an
// error page with status; htmx requests get the notice in a slot, see notify.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, n *model.Notice) {
	if isHTMX(r) {
		h.notify(w, r, n)
		return
	}
	h.render(w, r, status, views.ErrorPage(n))
}

// notify renders n into the notice slot of the element the htmx request
// targets, leaving the element itself, and any files selected in it, in place.
// htmx does not swap error statuses, so the answer is a 200.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request, n *model.Notice) {
	w.Header().Set("HX-Retarget", noticeTarget(r))
	w.Header().Set("HX-Reswap", "innerHTML")
	h.render(w, r, http.StatusOK, views.NoticeBox(n))
}

// noticeTarget is the selector of the notice slot for the request's htmx
// target, or the page slot when the target has no usable id.
func noticeTarget(r *http.Request) string {
	id := r.Header.Get("HX-Target")
	if id == "" || strings.IndexFunc(id, func(c rune) bool {
		return !(c == '-' || c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c))
	}) >= 0 {
		return "#" + views.PageNoticeID
	}
	return "#" + views.NoticeSlotID(id)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, views.ErrorPage(&model.Notice{MsgID: "ErrNotFound"}))
}

// urlParam returns a decoded path parameter. chi matches on RawPath when the
// request has one, and then the parameter arrives escaped.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.HomePage())
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.DashboardPage())
}
