package identityprovider

import (
	"context"
	"sort"

	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/identityprovider/domain"
	"go.uber.org/zap"
)

// ProviderConfig is an identity provider declared in the configuration.
type ProviderConfig struct {
	Origin  string
	Name    string
	Type    domain.Kind
	Enabled bool
	Zones   []string
	URL     string
}

// ProvidersFromConfig maps the declared providers onto registry kinds.
func ProvidersFromConfig(cfg config.Config) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(cfg.IdentityProviders))
	for _, idp := range cfg.IdentityProviders {
		out = append(out, ProviderConfig{
			Origin:  idp.Origin,
			Name:    idp.Name,
			Type:    domain.ParseKind(idp.Kind),
			Enabled: idp.Enabled,
			Zones:   append([]string(nil), idp.Zones...),
			URL:     idp.URL,
		})
	}
	return out
}

// Bootstrap registers the declared providers in every zone they name.
// Disabled providers are stored inactive so origin lookups refuse them.
func Bootstrap(ctx context.Context, svc domain.Service, cfgs []ProviderConfig, log *zap.Logger) error {
	sorted := append([]ProviderConfig(nil), cfgs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Origin < sorted[j].Origin })

	for _, pc := range sorted {
		var providerCfg map[string]any
		if pc.URL != "" {
			providerCfg = map[string]any{"url": pc.URL}
		}
		for _, zoneID := range pc.Zones {
			if _, err := svc.Register(ctx, domain.RegisterRequest{
				ZoneID:    zoneID,
				OriginKey: pc.Origin,
				Name:      pc.Name,
				Type:      pc.Type,
				Active:    pc.Enabled,
				Config:    providerCfg,
			}); err != nil {
				return err
			}
			if !pc.Enabled {
				log.Info("identity provider disabled",
					zap.String("origin", pc.Origin),
					zap.String("zone_id", zoneID),
				)
			}
		}
	}
	return nil
}
