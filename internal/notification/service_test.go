package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

func TestSendMessageDelegatesToProvider(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Send", mock.Anything, []string{"alice@example.com"}, "Invitation to join Cloud Foundry", "<p>x</p>").Return(nil)

	svc := New(Params{Log: zap.NewNop(), Provider: provider})
	err := svc.SendMessage(context.Background(), Message{
		To:      " alice@example.com ",
		Type:    MessageInvitation,
		Subject: "Invitation to join Cloud Foundry",
		HTML:    "<p>x</p>",
	})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestSendMessagePropagatesProviderError(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := New(Params{Log: zap.NewNop(), Provider: provider})
	err := svc.SendMessage(context.Background(), Message{To: "bob@example.com", Type: MessageInvitation})
	assert.EqualError(t, err, "smtp down")
}

func TestSendMessageRejectsEmptyRecipient(t *testing.T) {
	svc := New(Params{Log: zap.NewNop(), Provider: &mockProvider{}})
	assert.ErrorIs(t, svc.SendMessage(context.Background(), Message{}), ErrInvalidRecipient)
}

func TestRenderInvitationEscapesLink(t *testing.T) {
	body, err := RenderInvitation(InvitationView{
		ServiceName: "Cloud Foundry",
		AcceptURL:   "https://login.example.com/invitations/accept?code=abc&x=1",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Someone has invited you to join Cloud Foundry.")
	assert.Contains(t, body, `href="https://login.example.com/invitations/accept?code=abc&amp;x=1"`)
}
