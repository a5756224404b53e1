package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/sheetgrader/internal/handler/views"
	"github.com/pavelanni/sheetgrader/internal/model"
)

const (
	sessionCookieName = "sheetgrader_session"
	viewCookieName    = "sheetgrader_view"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"

	// operatorName is the single account behind the UI password.
	operatorName = "operator"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// msgSessionExpired answers a POST whose CSRF token is missing or stale.
const msgSessionExpired = "ErrSessionExpired"

// csrfMiddleware implements the double-submit cookie check. The token stays the same
// for the cookie's lifetime so pages updated by htmx partials keep a valid token.
// POSTs carry it in the X-CSRF-Token header (htmx) or the csrf_token form field.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(csrfCookieName); err == nil {
			token = c.Value
		}

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if token == "" {
				var err error
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     h.cookiePath(),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if token == "" {
			slog.Warn("CSRF cookie missing")
			h.fail(w, r, http.StatusForbidden, &model.Notice{MsgID: msgSessionExpired})
			return
		}

		sent := r.Header.Get(csrfHeaderName)
		if sent == "" {
			if err := parseForm(r); err != nil {
				h.formError(w, r, err)
				return
			}
			sent = r.FormValue("csrf_token")
		}
		if sent == "" {
			slog.Warn("CSRF form token missing")
			h.fail(w, r, http.StatusForbidden, &model.Notice{MsgID: msgSessionExpired})
			return
		}
		if len(sent) != len(token) || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			slog.Warn("CSRF token mismatch")
			h.fail(w, r, http.StatusForbidden, &model.Notice{MsgID: msgSessionExpired})
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// passwordHash returns the operator password hash; "" means login is disabled.
// The configured hash wins over the one stored by "sheetgrader passwd".
func (h *Handler) passwordHash() (string, error) {
	if h.config.PasswordHash != "" {
		return h.config.PasswordHash, nil
	}
	return h.store.OperatorPasswordHash()
}

// operator resolves the signed-in operator. ok is false when login is required and
// the request has no valid session.
func (h *Handler) operator(r *http.Request) (op *model.Operator, ok bool, err error) {
	hash, err := h.passwordHash()
	if err != nil {
		return nil, false, err
	}
	if hash == "" {
		return nil, true, nil
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false, nil
	}
	sess, err := h.store.GetAuthSession(cookie.Value)
	if err != nil || sess == nil {
		return nil, false, err
	}
	return &model.Operator{Name: sess.Operator}, true, nil
}

// requireAuth is middleware that checks for a valid session cookie when login is enabled.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, ok, err := h.operator(r)
		if err != nil {
			slog.Error("failed to check auth session", "error", err)
		}
		if !ok {
			h.redirectToLogin(w, r)
			return
		}
		ctx := r.Context()
		if op != nil {
			ctx = model.ContextWithOperator(ctx, op)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		_, ok, err := h.operator(r)
		if err != nil {
			slog.Error("failed to check auth session", "error", err)
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginPath := h.path("/login")
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", loginPath)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if hash, _ := h.passwordHash(); hash == "" {
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, views.LoginPage(nil))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	hash, err := h.passwordHash()
	if err != nil {
		slog.Error("failed to read operator password", "error", err)
		h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
		return
	}
	if hash == "" {
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}

	password := r.FormValue("password")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Error("invalid operator password hash", "error", err)
		}
		h.render(w, r, http.StatusUnauthorized, views.LoginPage(&model.Notice{MsgID: "ErrInvalidPassword"}))
		return
	}

	token, err := h.store.CreateAuthSession(operatorName)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	slog.Info("operator signed in")
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	h.redirect(w, r, "/login")
}

// viewSessionMiddleware attaches the browser's view session, starting a new one when
// the cookie is missing or its session expired.
func (h *Handler) viewSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(viewCookieName); err == nil && c.Value != "" {
			ok, err := h.store.ViewSessionExists(c.Value)
			if err != nil {
				slog.Error("failed to look up view session", "error", err)
				h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
				return
			}
			if ok {
				id = c.Value
			}
		}
		if id == "" {
			var err error
			id, err = h.store.CreateViewSession()
			if err != nil {
				slog.Error("failed to create view session", "error", err)
				h.fail(w, r, http.StatusInternalServerError, &model.Notice{MsgID: msgUnexpected})
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     viewCookieName,
				Value:    id,
				Path:     h.cookiePath(),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   h.config.SecureCookies,
			})
		}
		ctx := model.ContextWithViewSession(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
