package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/identityprovider/domain"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	conn, err := db.NewTest(t.Name(), &domain.Provider{})
	require.NoError(t, err)
	return New(conn)
}

func provider(id int64, zone, origin string, kind domain.Kind, active bool) *domain.Provider {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Provider{
		ID:        snowflake.ID(id),
		ZoneID:    zone,
		OriginKey: origin,
		Name:      origin,
		Type:      kind,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFindActiveByOrigin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, provider(1, "uaa", "uaa", domain.KindUAA, true)))
	require.NoError(t, repo.Upsert(ctx, provider(2, "uaa", "corp-saml", domain.KindSAML, false)))
	require.NoError(t, repo.Upsert(ctx, provider(3, "other", "uaa", domain.KindUAA, true)))

	found, err := repo.FindActiveByOrigin(ctx, "uaa", "uaa")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1), found.ID)

	_, err = repo.FindActiveByOrigin(ctx, "uaa", "corp-saml")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = repo.FindActiveByOrigin(ctx, "uaa", "missing")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	list, err := repo.ListActive(ctx, "uaa")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "uaa", list[0].OriginKey)
}

func TestUpsertUpdatesExistingOrigin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, provider(1, "uaa", "ldap", domain.KindLDAP, false)))

	update := provider(2, "uaa", "ldap", domain.KindLDAP, true)
	update.Name = "Corporate LDAP"
	require.NoError(t, repo.Upsert(ctx, update))
	assert.Equal(t, snowflake.ID(1), update.ID)

	found, err := repo.FindActiveByOrigin(ctx, "uaa", "ldap")
	require.NoError(t, err)
	assert.Equal(t, "Corporate LDAP", found.Name)
	assert.True(t, found.Active)
}
