package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/httperror"
	"github.com/TilBlechschmidt/restic-dl/internal/session"
)

type contextKey int

const (
	contextKeyRepository contextKey = iota
	contextKeyRepositoryName
)

// RequestLogger is a Chi-compatible middleware logging method, path, status,
// and latency for every request, following the teacher's RequestLogger shape.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// RequireSiteSession rejects requests without a valid site-session cookie,
// rendering the login page instead of the wrapped handler.
func RequireSiteSession(cache *session.SiteCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromCookie(r, siteCookieName)
			if !ok || !cache.Contains(token) {
				httperror.Write(w, r, httperror.UnauthorizedAt("/?login", "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRepositorySession resolves the `repo` URL parameter's session
// cookie into an opened backend.Repository, stashing it in the request
// context for downstream handlers. Requests without a valid cookie render
// the unlock form for that repository.
func RequireRepositorySession(cache *session.RepositoryCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "repo")
			unlockAction := "/" + name + "?unlock"

			token, ok := tokenFromCookie(r, repoCookieName(name))
			if !ok {
				httperror.Write(w, r, httperror.UnauthorizedAt(unlockAction, "repository locked"))
				return
			}

			repo, ok := cache.GetNamed(token, name)
			if !ok {
				httperror.Write(w, r, httperror.UnauthorizedAt(unlockAction, "repository locked"))
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyRepository, repo)
			ctx = context.WithValue(ctx, contextKeyRepositoryName, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func repositoryFromContext(ctx context.Context) (backend.Repository, string) {
	repo, _ := ctx.Value(contextKeyRepository).(backend.Repository)
	name, _ := ctx.Value(contextKeyRepositoryName).(string)
	return repo, name
}
