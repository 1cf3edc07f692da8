package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TilBlechschmidt/restic-dl/internal/httperror"
	"github.com/TilBlechschmidt/restic-dl/internal/session"
)

// AuthHandler implements the site-login and per-repository-unlock form
// submissions.
type AuthHandler struct {
	site            *session.SiteCache
	repos           *session.RepositoryCache
	sessionLifetime time.Duration
	secure          bool
}

// Login handles `POST /?login`: verifies the submitted password against the
// site verifier, sets the session cookie, and redirects to the page the
// form's hidden "redirect" field names — the page that originally rendered
// the form, since the form itself always posts to "/".
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const action = "/?login"

	if !r.URL.Query().Has("login") {
		httperror.Write(w, r, httperror.BadRequest("missing login query marker"))
		return
	}
	if err := r.ParseForm(); err != nil {
		httperror.Write(w, r, httperror.BadRequest("invalid form body"))
		return
	}

	redirectTo := httperror.SanitizeRedirect(r.PostForm.Get("redirect"))

	token, err := h.site.Insert(r.PostForm.Get("password"))
	if err != nil {
		httperror.WriteLoginPage(w, http.StatusUnauthorized, action, redirectTo, "incorrect password")
		return
	}

	setTokenCookie(w, siteCookieName, token, "/", h.sessionLifetime, h.secure)
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// Unlock handles `POST /:repo?unlock`: verifies the submitted password
// against the named repository's verifier, sets a repository-scoped
// session cookie, and redirects back to the page the form's hidden
// "redirect" field names.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "repo")
	action := "/" + name + "?unlock"

	if !r.URL.Query().Has("unlock") {
		httperror.Write(w, r, httperror.BadRequest("missing unlock query marker"))
		return
	}
	if err := r.ParseForm(); err != nil {
		httperror.Write(w, r, httperror.BadRequest("invalid form body"))
		return
	}

	redirectTo := httperror.SanitizeRedirect(r.PostForm.Get("redirect"))

	_, token, err := h.repos.Open(r.Context(), name, r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			httperror.Write(w, r, httperror.NotFound("unknown repository"))
			return
		}
		httperror.WriteLoginPage(w, http.StatusUnauthorized, action, redirectTo, "incorrect password")
		return
	}

	setTokenCookie(w, repoCookieName(name), token, "/", h.sessionLifetime, h.secure)
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}
