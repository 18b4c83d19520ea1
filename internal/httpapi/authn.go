package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rollcall.org/internal/auth"
	"rollcall.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/verify-member",
	"/v1/auth/set-password",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth verifies the bearer token on protected paths and attaches the
// claims and raw token to the request context. Every verification failure
// surfaces as the same 401: the caller never learns whether the token was
// expired, revoked or tampered. The specific reason is logged internally.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.guard == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		claims, err := a.guard.RequireAuthenticated(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				obs.LogEvent(map[string]any{
					"level":  "info",
					"msg":    "token rejected",
					"reason": err.Error(),
					"path":   r.URL.Path,
				})
				writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
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

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
