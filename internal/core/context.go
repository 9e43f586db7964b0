package core

import "context"

type contextKey string

const (
	ctxKeyClientIP  contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "client_ua"
)

// ContextWithClient records who issued a session operation so imports and
// triage runs can be traced back to a caller in the logs.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// ClientFromContext returns the caller recorded by ContextWithClient.
func ClientFromContext(ctx context.Context) (ip, userAgent string) {
	ip, _ = ctx.Value(ctxKeyClientIP).(string)
	userAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return ip, userAgent
}

// clientFields returns the caller as slog key-value pairs, or nil.
func clientFields(ctx context.Context) []any {
	ip, ua := ClientFromContext(ctx)
	var out []any
	if ip != "" {
		out = append(out, "client_ip", ip)
	}
	if ua != "" {
		out = append(out, "user_agent", ua)
	}
	return out
}
