package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"plixa.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/v1/docs",
	"/metrics",
	"/api/v1/auth/access-token",
	"/api/v1/payments/stream",
}

// routeScopes declares the scope requirements per route. The second return
// reports whether the route is public (no token required). Payments are
// posted by anonymous payers, so recording one is public.
func routeScopes(r *http.Request) (auth.Scopes, bool) {
	path := r.URL.Path
	for _, p := range publicPaths {
		if path == p {
			return nil, true
		}
	}
	switch {
	case path == "/api/v1/auth/create-user":
		return auth.Scopes{auth.ScopeAll, auth.ScopeCreateUser}, false
	case path == "/api/v1/auth/me":
		return nil, false
	case path == "/api/v1/clusters":
		if r.Method == http.MethodPost {
			return auth.Scopes{auth.ScopeWrite}, false
		}
		return auth.Scopes{auth.ScopeRead}, false
	case strings.HasPrefix(path, "/api/v1/clusters/"):
		switch {
		case strings.HasSuffix(path, "/transactions"):
			if r.Method == http.MethodPost {
				return nil, true
			}
			return auth.Scopes{auth.ScopeRead}, false
		case strings.HasSuffix(path, "/deploy"), strings.HasSuffix(path, "/withdrawals"):
			return auth.Scopes{auth.ScopeWrite}, false
		default:
			return auth.Scopes{auth.ScopeRead}, false
		}
	case strings.HasPrefix(path, "/api/v1/schools/"):
		if r.Method == http.MethodPost {
			return auth.Scopes{auth.ScopeWrite}, false
		}
		return auth.Scopes{auth.ScopeRead}, false
	}
	// Unknown paths fall through to the mux 404.
	return nil, true
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a.authn == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		required, public := routeScopes(r)
		if public {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			a.unauthorized(w, r, required)
			return
		}

		principal, err := a.authn.Authenticate(r.Context(), token, required)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrForbidden):
				w.Header().Set("WWW-Authenticate", auth.Challenge(required))
				writeError(w, r, http.StatusForbidden, "not enough permissions")
			case errors.Is(err, auth.ErrUnauthorized):
				a.unauthorized(w, r, required)
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized keeps the 401 body identical regardless of the failure cause.
func (a *API) unauthorized(w http.ResponseWriter, r *http.Request, required auth.Scopes) {
	w.Header().Set("WWW-Authenticate", auth.Challenge(required))
	writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
