package middleware

import (
	"net/http"
	"strings"

	"github.com/amerta-coffee/amerta-coffee-api/api/responses"
	pkgAuth "github.com/amerta-coffee/amerta-coffee-api/pkg/auth"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
)

// Auth validates the bearer token and stores its subject as the request's
// user. Identity itself is issued elsewhere; this service only verifies.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" in any case, or a bare token.
func bearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 1:
		return fields[0], true
	case len(fields) == 2 && strings.EqualFold(fields[0], "bearer"):
		return fields[1], true
	}
	return "", false
}
