package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/user/domain"
	"github.com/smallbiznis/identity/internal/user/password"
	"github.com/smallbiznis/identity/internal/user/repository"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testHashParams = password.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestService(t *testing.T) (domain.Service, *password.Hasher) {
	t.Helper()
	return newTestServiceWithClock(t, clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func newTestServiceWithClock(t *testing.T, clk clock.Clock) (domain.Service, *password.Hasher) {
	t.Helper()

	conn, err := db.NewTest(t.Name(), &domain.User{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	hasher := password.NewHasher(testHashParams)
	return New(Params{
		Log:    zap.NewNop(),
		Repo:   repository.New(conn),
		GenID:  node,
		Clock:  clk,
		Hasher: hasher,
	}), hasher
}

func TestCreateUserIsUnverified(t *testing.T) {
	svc, hasher := newTestService(t)

	user, err := svc.Create(context.Background(), domain.CreateUserRequest{
		Email:    "Alice <Alice@Example.com>",
		Password: "placeholder",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice@example.com", user.Username)
	assert.Equal(t, domain.OriginLocal, user.Origin)
	assert.Equal(t, zonectx.DefaultZoneID, user.ZoneID)
	assert.False(t, user.Verified)
	require.NotNil(t, user.PasswordHash)
	assert.True(t, hasher.Verify("placeholder", *user.PasswordHash))
	_, err = uuid.Parse(user.ExternalID)
	assert.NoError(t, err)
}

func TestCreateUserConflictReportsVerification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateUserRequest{Email: "bob@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateUserRequest{Email: "BOB@example.com", Password: "y"})
	var exists *domain.AlreadyExistsError
	require.True(t, errors.As(err, &exists))
	assert.Equal(t, first.ID.String(), exists.UserID)
	assert.False(t, exists.Verified)

	_, err = svc.AcceptInvitation(ctx, first.ID.String(), "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateUserRequest{Email: "bob@example.com", Password: "z"})
	require.True(t, errors.As(err, &exists))
	assert.True(t, exists.Verified)
}

func TestCreateUserScopedByZone(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateUserRequest{Email: "carol@example.com", Password: "x", ZoneID: "uaa"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.CreateUserRequest{Email: "carol@example.com", Password: "x", ZoneID: "tenant-a"})
	assert.NoError(t, err)
}

func TestCreateUserRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateUserRequest{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestAcceptInvitationVerifiesAndSetsCredential(t *testing.T) {
	svc, hasher := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{Email: "dave@example.com", Password: "placeholder"})
	require.NoError(t, err)

	accepted, err := svc.AcceptInvitation(ctx, user.ID.String(), "n3w-Password")
	require.NoError(t, err)

	assert.True(t, accepted.Verified)
	assert.Equal(t, user.Version+1, accepted.Version)
	assert.True(t, hasher.Verify("n3w-Password", *accepted.PasswordHash))
}

func TestAcceptInvitationWithoutPasswordKeepsCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{Email: "erin@example.com", Password: "placeholder"})
	require.NoError(t, err)

	accepted, err := svc.AcceptInvitation(ctx, user.ID.String(), "")
	require.NoError(t, err)

	assert.True(t, accepted.Verified)
	assert.Equal(t, *user.PasswordHash, *accepted.PasswordHash)
}

func TestAcceptInvitationStampsClockTime(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestServiceWithClock(t, clk)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{Email: "fay@example.com", Password: "placeholder"})
	require.NoError(t, err)

	clk.Advance(36 * time.Hour)
	accepted, err := svc.AcceptInvitation(ctx, user.ID.String(), "n3w-Password")
	require.NoError(t, err)

	want := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, want, accepted.UpdatedAt, time.Second)
	require.NotNil(t, accepted.PasswordLastModified)
	assert.WithinDuration(t, want, *accepted.PasswordLastModified, time.Second)
}

func TestVerifyWithStaleVersionFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{Email: "frank@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, user.ID.String(), user.Version)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, user.ID.String(), user.Version)
	assert.ErrorIs(t, err, domain.ErrVersionMismatch)
}

func TestChangeCredentialWithExpectedVersion(t *testing.T) {
	svc, hasher := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{Email: "gina@example.com", Password: "x"})
	require.NoError(t, err)

	stale := user.Version + 5
	_, err = svc.ChangeCredential(ctx, user.ID.String(), &stale, "other")
	assert.ErrorIs(t, err, domain.ErrVersionMismatch)

	updated, err := svc.ChangeCredential(ctx, user.ID.String(), nil, "other")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("other", *updated.PasswordHash))
	assert.False(t, updated.Verified)
}

func TestRetrieveUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Retrieve(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.Retrieve(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.AcceptInvitation(context.Background(), "12345", "pw")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
