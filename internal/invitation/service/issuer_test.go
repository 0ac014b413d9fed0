package service

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteCreatesUnverifiedUserAndSendsLink(t *testing.T) {
	h := newHarness(t)

	invitation := h.invite(t, "Alice@Example.com", "", testRedirect)

	assert.True(t, invitation.Success)
	assert.True(t, invitation.NewUser)
	assert.Equal(t, "alice@example.com", invitation.Email)
	assert.Equal(t, domain.OriginLocal, invitation.Origin)
	assert.Equal(t, "https://login.example.com/invitations/accept?code="+invitation.Code, invitation.InviteLink)

	user, err := h.users.Retrieve(context.Background(), invitation.UserID)
	require.NoError(t, err)
	assert.False(t, user.Verified)
	assert.Equal(t, "alice@example.com", user.Username)
	require.NotNil(t, user.PasswordHash)

	sent := h.email.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, sent[0].to)
	assert.Equal(t, "Invitation to join Cloud Foundry", sent[0].subject)
	assert.Contains(t, sent[0].body, invitation.InviteLink)
	assert.Contains(t, sent[0].body, "admin@example.com has invited you")

	assert.Len(t, h.auditActions(t, "invitation.issued"), 1)
}

func TestInviteUsesPivotalBrandInSubject(t *testing.T) {
	h := newHarness(t, withBrand("pivotal"))

	h.invite(t, "bob@example.com", "", testRedirect)

	sent := h.email.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Invitation to join Pivotal", sent[0].subject)
	assert.Contains(t, sent[0].body, "join Pivotal")
}

func TestInviteStoresPayloadForAcceptance(t *testing.T) {
	h := newHarness(t)

	invitation, err := h.issuer.Invite(context.Background(), domain.InviteRequest{
		Email:       "carol@example.com",
		RedirectURI: testRedirect,
		ClientID:    "app",
		Origin:      "github",
		ZoneID:      "uaa",
		Inviter:     h.inviter,
	})
	require.NoError(t, err)

	stored, err := h.codes.Retrieve(context.Background(), invitation.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentInvitation, stored.Intent)

	payload, err := domain.DecodePayload(stored.Data)
	require.NoError(t, err)
	assert.Equal(t, invitation.UserID, payload.UserID())
	assert.Equal(t, "carol@example.com", payload.Email())
	assert.Equal(t, testRedirect, payload.RedirectURI())
	assert.Equal(t, "github", payload.Origin())
	assert.Equal(t, "app", payload[domain.KeyClientID])
}

func TestReinviteUnverifiedUserReusesIdentity(t *testing.T) {
	h := newHarness(t)

	first := h.invite(t, "dave@example.com", "", testRedirect)
	second := h.invite(t, "DAVE@example.com", "", testRedirect)

	assert.False(t, second.NewUser)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, "dave@example.com", second.Email)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Len(t, h.email.messages(), 2)
}

func TestInviteVerifiedUserConflicts(t *testing.T) {
	h := newHarness(t)

	invitation := h.invite(t, "erin@example.com", "", testRedirect)
	_, err := h.users.AcceptInvitation(context.Background(), invitation.UserID, "")
	require.NoError(t, err)

	_, err = h.issuer.Invite(context.Background(), domain.InviteRequest{
		Email:   "erin@example.com",
		ZoneID:  "uaa",
		Inviter: h.inviter,
	})
	var conflict *domain.UserConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.Verified)
	assert.Equal(t, "erin@example.com", conflict.Email)
}

func TestInviteSwallowsDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.email.err = errors.New("smtp unavailable")

	invitation := h.invite(t, "frank@example.com", "", testRedirect)

	assert.True(t, invitation.Success)
	_, err := h.codes.Retrieve(context.Background(), invitation.Code)
	assert.NoError(t, err)
}

func TestInviteRequiresCapability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plain := principal.NewAuthenticated(principal.Identity{UserID: "2000", Username: "plain@example.com", ZoneID: "uaa"})
	_, err := h.issuer.Invite(ctx, domain.InviteRequest{Email: "gina@example.com", ZoneID: "uaa", Inviter: &plain})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	invited := principal.NewInvited("3000", "gina@example.com", "uaa", "uaa")
	_, err = h.issuer.Invite(ctx, domain.InviteRequest{Email: "gina@example.com", ZoneID: "uaa", Inviter: &invited})
	assert.ErrorIs(t, err, principal.ErrUnauthenticated)

	_, err = h.issuer.Invite(ctx, domain.InviteRequest{Email: "gina@example.com", ZoneID: "uaa"})
	assert.ErrorIs(t, err, principal.ErrUnauthenticated)

	assert.Empty(t, h.email.messages())
	assert.Len(t, h.auditActions(t, "authorization.denied"), 1)
}

func TestInviteUsersReportsPerEmailResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	verified := h.invite(t, "verified@example.com", "", testRedirect)
	_, err := h.users.AcceptInvitation(ctx, verified.UserID, "")
	require.NoError(t, err)

	result, err := h.issuer.InviteUsers(ctx, domain.BatchInviteRequest{
		Emails:      []string{"new@example.com", "not-an-email", "verified@example.com"},
		RedirectURI: testRedirect,
		ZoneID:      "uaa",
		Inviter:     h.inviter,
	})
	require.NoError(t, err)

	require.Len(t, result.NewInvites, 1)
	assert.Equal(t, "new@example.com", result.NewInvites[0].Email)
	assert.NotEmpty(t, result.NewInvites[0].InviteLink)

	require.Len(t, result.FailedInvites, 2)
	assert.Equal(t, "not-an-email", result.FailedInvites[0].Email)
	assert.Equal(t, "email.invalid", result.FailedInvites[0].ErrorCode)
	assert.False(t, result.FailedInvites[0].Success)
	assert.Equal(t, "verified@example.com", result.FailedInvites[1].Email)
	assert.Equal(t, "user.ineligible", result.FailedInvites[1].ErrorCode)
}

func TestInviteUsersRejectsEmptyBatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.issuer.InviteUsers(context.Background(), domain.BatchInviteRequest{ZoneID: "uaa", Inviter: h.inviter})
	assert.ErrorIs(t, err, domain.ErrNoEmails)
}
