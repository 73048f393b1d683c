package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/golang-jwt/jwt/v5"

	"github.com/valenciashop/valencia/internal/observability"
)

type actorContextKey struct{}

// ActorFromContext returns the authenticated admin identity, or empty when
// the request did not pass RequireAdmin.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok {
		return actor
	}
	return ""
}

// RequireAdmin authenticates admin requests with a bearer token and puts
// the token subject into context; the inventory ledger records it as
// created_by.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meter := observability.MeterFromContext(r.Context())

		actor, err := h.actorFromRequest(r)
		if err != nil {
			meter.Count("auth.admin.rejected", 1, sentry.WithAttributes(attribute.String("reason", "invalid_token")))
			h.loggerFromContext(r.Context()).Warn("rejected admin request", "error", err, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) actorFromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("missing bearer token")
	}

	parsed, err := jwt.Parse(strings.TrimSpace(token), func(t *jwt.Token) (any, error) {
		return []byte(h.config.AdminJWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
