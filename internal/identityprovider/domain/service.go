package domain

import "context"

type Service interface {
	RetrieveByOrigin(ctx context.Context, origin, zoneID string) (*Provider, error)
	ListActive(ctx context.Context, zoneID string) ([]Provider, error)
	Register(ctx context.Context, req RegisterRequest) (*Provider, error)
}

type RegisterRequest struct {
	ZoneID    string
	OriginKey string
	Name      string
	Type      Kind
	Active    bool
	Config    map[string]any
}
