package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/casegrid/internal/core"
)

// ActorHeader names the user an upstream proxy authenticated.
const ActorHeader = "X-User-Email"

// WithRequestMetadata adds the actor, IP and User-Agent to ctx for audit
// logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
		ctx = core.ContextWithActor(ctx, actor)
	}
	return ctx
}

func withRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}
