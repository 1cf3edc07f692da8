package api

import (
	"net/http"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/ident"
)

const siteCookieName = "session"

func repoCookieName(repo string) string { return "repo-" + repo }

// setTokenCookie writes token as an HttpOnly, SameSite=Strict cookie scoped
// to path, carrying the Secure flag iff the site is served over HTTPS.
func setTokenCookie(w http.ResponseWriter, name string, token ident.SessionToken, path string, lifetime time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token.String(),
		Path:     path,
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// tokenFromCookie extracts and parses a session token from the named
// cookie, returning ok=false if absent or malformed.
func tokenFromCookie(r *http.Request, name string) (ident.SessionToken, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return ident.SessionToken{}, false
	}
	token, err := ident.ParseSessionToken(c.Value)
	if err != nil {
		return ident.SessionToken{}, false
	}
	return token, true
}
