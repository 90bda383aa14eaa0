// Package middleware attaches the authentication result to each request.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"paygate/internal/auth/models"
	platformMW "paygate/internal/platform/middleware"
	httperrors "paygate/pkg/http-errors"
)

// Authenticator resolves presented credentials into an AuthContext.
type Authenticator interface {
	Authenticate(ctx context.Context, method, path string, creds models.PresentedCredentials) (*models.AuthContext, error)
}

type contextKeyAuth struct{}

// GetAuthContext retrieves the request's authentication result. Returns nil
// when the request never passed through Authenticate.
func GetAuthContext(ctx context.Context) *models.AuthContext {
	authCtx, ok := ctx.Value(contextKeyAuth{}).(*models.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// WithAuthContext injects an authentication result. Test hook.
func WithAuthContext(ctx context.Context, authCtx *models.AuthContext) context.Context {
	return context.WithValue(ctx, contextKeyAuth{}, authCtx)
}

// Authenticate extracts the X-API-Key header and any bearer token, resolves
// them through the authenticator, and stores the result in the request
// context. Authentication failures terminate the request here.
func Authenticate(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			creds := models.PresentedCredentials{
				APIKey:       strings.TrimSpace(r.Header.Get("X-API-Key")),
				SessionToken: bearerToken(r),
			}

			authCtx, err := auth.Authenticate(ctx, r.Method, r.URL.Path, creds)
			if err != nil {
				logger.WarnContext(ctx, "authentication rejected",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
				httperrors.Write(w, err, platformMW.GetTraceID(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, authCtx)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
