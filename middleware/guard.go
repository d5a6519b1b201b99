// Package middleware adapts the Engine to net/http. Guard rejects requests
// without a valid bearer access token; handlers behind it read the caller's
// user id with PrincipalID.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tradepost/authcore"
)

type authResultContextKey struct{}

// PrincipalID returns the authenticated user id placed in ctx by Guard.
func PrincipalID(ctx context.Context) (string, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	if !ok {
		return "", false
	}
	return res.UserID, true
}

// Guard returns middleware that authenticates each request with the engine.
// Missing, malformed, expired and tampered tokens all get the same bare 401;
// the reason stays in the server, never in the response.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
