package domain

import "context"

type Repository interface {
	FindActiveByOrigin(ctx context.Context, zoneID, origin string) (*Provider, error)
	ListActive(ctx context.Context, zoneID string) ([]Provider, error)
	// Upsert inserts the provider or updates name, type, active and config
	// of the existing (zone, origin) row.
	Upsert(ctx context.Context, provider *Provider) error
}
