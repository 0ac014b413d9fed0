package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/identity/internal/providers/email"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidRecipient = errors.New("invalid_recipient")

type Service interface {
	SendMessage(ctx context.Context, msg Message) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
}

type service struct {
	log      *zap.Logger
	provider email.Provider
}

func New(p Params) Service {
	return &service{
		log:      p.Log.Named("notification.service"),
		provider: p.Provider,
	}
}

func (s *service) SendMessage(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return ErrInvalidRecipient
	}
	if err := s.provider.Send(ctx, []string{to}, msg.Subject, msg.HTML); err != nil {
		return err
	}
	ctxlogger.WithContext(ctx, s.log).Debug("message sent",
		zap.String("type", string(msg.Type)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(New),
)
