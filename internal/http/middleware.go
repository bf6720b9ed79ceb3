package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"warbler/internal/auth"
	"warbler/internal/metrics"
)

// CookieName is the fixed session key: the cookie holds the server-side
// session id that identifies the logged-in user.
const CookieName = "warbler_session"

// FlashUnauthorized is the generic outcome for missing or invalid identity,
// distinct from the 403 page used when an owner tries to like their own
// message.
const FlashUnauthorized = "Access unauthorized."

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			// Valida la sesión en BD
			if uid, exp, err2 := auth.UserFromSession(s.DB, c.Value); err2 == nil && exp.After(time.Now()) {
				r = r.WithContext(auth.WithUserID(r.Context(), uid))
			} else {
				log.Debug().Str("sid", c.Value).Err(err2).Msg("session invalid")
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a resolved user. A dangling session
// (cookie present, user gone) lands here too and gets the same treatment.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFrom(r.Context()); !ok {
			redirectWithFlash(w, r, "/", FlashUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, flash string) {
	http.Redirect(w, r, to+"?err="+url.QueryEscape(flash), http.StatusFound)
}

type statusRW struct {
	http.ResponseWriter
	status int
}

func (w *statusRW) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the matched route's template ("/users/{id:[0-9]+}")
// instead of the concrete path, so each route is one metric series.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// withAccessLog logs METHOD PATH -> STATUS and feeds the request metrics.
func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRW{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		path := routeLabel(r)
		metrics.RequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(sw.status)).Inc()
		metrics.RequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("took", elapsed.Truncate(time.Millisecond)).
			Msg("request")
	})
}
