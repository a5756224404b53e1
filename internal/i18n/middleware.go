package i18n

import "net/http"

// CookieName is the cookie that remembers an explicit language choice.
const CookieName = "lang"

// Middleware picks the request language and injects its localizer into the context.
// A ?lang= query parameter wins and is remembered in a cookie; then the cookie; then
// Accept-Language; then the default language.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookie string
			if c, err := r.Cookie(CookieName); err == nil {
				cookie = c.Value
			}
			query := r.URL.Query().Get("lang")
			lang := Match(query, cookie, r.Header.Get("Accept-Language"))
			if query != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    lang,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			ctx = WithLang(ctx, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
