package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"get5-api/internal/metrics"
	"get5-api/internal/model"
	"get5-api/internal/repository"
)

const (
	requestIDHeader = "X-Request-ID"
	tokenCookie     = "get5_token"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	principalKey
)

// requestID takes the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(req.Context(), requestIDKey, id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requestLogger attaches a child logger to the request context and logs
// every completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, _ := req.Context().Value(requestIDKey).(string)
		logger := log.With().
			Str("request_id", id).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Logger()

		ww := chimw.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, req.WithContext(logger.WithContext(req.Context())))

		logger.Debug().
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// recovery turns a handler panic into a 500 response.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logFor(req).Error().
					Interface("panic", rec).
					Msg("Recovered from panic in handler")
				writeMessage(w, http.StatusInternalServerError, "Internal server error.")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// observe records request counts and latency by route pattern.
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, req)

			route := "unmatched"
			if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(req.Method, route, ww.Status(), time.Since(start))
		})
	}
}

// timeout bounds every request's context so database calls give up when
// the client can no longer be answered in time.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// authenticate resolves the bearer token, or the session cookie, to a
// principal. A missing or invalid token leaves the request anonymous.
func (r *Router) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := bearerToken(req)
		if token == "" || r.deps.Auth == nil || r.deps.Users == nil {
			next.ServeHTTP(w, req)
			return
		}

		logger := logFor(req)
		claims, err := r.deps.Auth.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("Ignoring invalid token")
			next.ServeHTTP(w, req)
			return
		}

		user, err := r.deps.Users.GetByID(req.Context(), claims.UserID)
		if err != nil {
			if !errors.Is(err, repository.ErrUserNotFound) {
				writeError(w, req, err)
				return
			}
			logger.Debug().Int64("user_id", claims.UserID).Msg("Token for unknown user")
			next.ServeHTTP(w, req)
			return
		}

		p := user.Principal()
		l := logger.With().Int64("user_id", p.ID).Logger()
		ctx := context.WithValue(req.Context(), principalKey, p)
		next.ServeHTTP(w, req.WithContext(l.WithContext(ctx)))
	})
}

// requireAuth redirects anonymous requests to the login page.
func (r *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, ok := principalFrom(req.Context()); !ok {
			logFor(req).Debug().Msg("Redirecting unauthenticated request to login")
			http.Redirect(w, req, r.deps.LoginURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := req.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func principalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}
