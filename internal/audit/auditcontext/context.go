// Package auditcontext carries request metadata recorded with audit entries.
package auditcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "audit.request_id"
	ipAddressKey contextKey = "audit.ip_address"
	userAgentKey contextKey = "audit.user_agent"
	actorTypeKey contextKey = "audit.actor_type"
	actorIDKey   contextKey = "audit.actor_id"
)

func WithRequestMetadata(ctx context.Context, requestID, ipAddress, userAgent string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	ctx = context.WithValue(ctx, ipAddressKey, ipAddress)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, actorType)
	return context.WithValue(ctx, actorIDKey, actorID)
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }
func IPAddressFromContext(ctx context.Context) string { return stringValue(ctx, ipAddressKey) }
func UserAgentFromContext(ctx context.Context) string { return stringValue(ctx, userAgentKey) }

func ActorFromContext(ctx context.Context) (string, string) {
	return stringValue(ctx, actorTypeKey), stringValue(ctx, actorIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
