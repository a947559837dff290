package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
)

type actorKey struct{}

// AuthRequired rejects requests without a verified access token and puts the
// caller's Actor in the request context.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				response.HandleError(w, user.ErrUnauthenticated)
				return
			}

			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.HandleError(w, user.ErrUnauthenticated)
				return
			}

			actor, ok := actorFromClaims(claims)
			if !ok {
				response.HandleError(w, user.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		}
		return http.HandlerFunc(hfn)
	}
}

func actorFromClaims(claims map[string]interface{}) (user.Actor, bool) {
	userID, _ := claims["user_id"].(string)
	orgID, _ := claims["org_id"].(string)
	if userID == "" || orgID == "" {
		return user.Actor{}, false
	}

	actor := user.Actor{UserID: userID, OrgID: orgID}
	if role, ok := claims["role"].(string); ok {
		actor.Role = user.Role(role)
	}
	switch ids := claims["role_ids"].(type) {
	case []interface{}:
		for _, id := range ids {
			if s, ok := id.(string); ok {
				actor.RoleIDs = append(actor.RoleIDs, s)
			}
		}
	case []string:
		actor.RoleIDs = append(actor.RoleIDs, ids...)
	}
	return actor, true
}

func WithActor(ctx context.Context, actor user.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated caller set by AuthRequired.
func ActorFromContext(ctx context.Context) (user.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(user.Actor)
	return actor, ok
}
