package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/platform/httpx"
	"github.com/inspectra-app/inspectra/internal/shared"
)

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor ability.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (ability.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(ability.Actor)
	return actor, ok
}

// Middleware resolves the session to an actor and rejects unauthenticated
// requests.
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware constructs the middleware.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	return &Middleware{service: service, logger: logger}
}

// RequireActor loads the actor onto the request context or responds 401.
func (m *Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		actor, err := m.service.ResolveActor(r.Context(), sess)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
