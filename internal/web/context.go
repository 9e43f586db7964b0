package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to the context for
// session logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	return core.ContextWithClient(ctx, ip, r.UserAgent())
}
