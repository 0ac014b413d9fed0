// Package zonectx carries the identity zone (tenant) of the current request.
package zonectx

import (
	"context"
	"strings"
)

type keyType string

const (
	ZoneIDKey keyType = "zone_id"

	// DefaultZoneID is the zone used when a request does not name one.
	DefaultZoneID = "uaa"
)

func WithZoneID(ctx context.Context, zoneID string) context.Context {
	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		return ctx
	}
	return context.WithValue(ctx, ZoneIDKey, zoneID)
}

func ZoneID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ZoneIDKey).(string)
	return id, ok && id != ""
}

// ZoneIDOrDefault returns the zone on the context, falling back to DefaultZoneID.
func ZoneIDOrDefault(ctx context.Context) string {
	if id, ok := ZoneID(ctx); ok {
		return id
	}
	return DefaultZoneID
}
