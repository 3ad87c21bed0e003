package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/02JanDal/spatialvault/internal/domain/principal"
)

// Identity headers set by the authenticating reverse proxy.
const (
	headerUser   = "X-Auth-User"
	headerGroups = "X-Auth-Groups"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type contextKey struct{}

var principalKey contextKey

// PrincipalMiddleware extracts the authenticated principal from the
// trusted proxy headers and stores it on the request context. Requests
// without an identity are rejected; the proxy authenticates, this
// service only consumes the result.
func PrincipalMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			username := strings.TrimSpace(r.Header.Get(headerUser))
			if username == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing identity header")
				return
			}

			var groups []string
			if raw := r.Header.Get(headerGroups); raw != "" {
				for _, g := range strings.Split(raw, ",") {
					if g = strings.TrimSpace(g); g != "" {
						groups = append(groups, g)
					}
				}
			}

			p, err := principal.New(username, groups)
			if err != nil {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
		})
	}
}

// principalFrom returns the principal stored by PrincipalMiddleware.
func principalFrom(r *http.Request) (principal.Principal, bool) {
	p, ok := r.Context().Value(principalKey).(principal.Principal)
	return p, ok
}
