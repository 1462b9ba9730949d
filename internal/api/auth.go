package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/jononovo/5ducks-outreach/internal/pkg/httputil"
)

// ErrAdminTokenRequired is returned by Server.Start when no admin token is
// configured.
var ErrAdminTokenRequired = errors.New("api: admin token is not configured")

// requireAdminToken rejects requests that don't carry the shared admin
// token as a bearer credential. An empty token rejects everything.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if len(want) == 0 || !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				httputil.Error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
