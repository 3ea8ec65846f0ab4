package service

import (
	"context"
	"log/slog"

	"github.com/ostromart/accounts/internal/account/domain"
)

// Notifier delivers transactional mail. The core treats delivery as
// fire-and-forget: a Send failure is logged by the caller and never fails
// the operation that issued the token.
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

// SlogNotifier is the development Notifier: it logs the action link instead
// of delivering mail, so the flow is exercisable end to end without an SMTP
// collaborator.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (s *SlogNotifier) Send(ctx context.Context, n domain.Notification) error {
	s.Logger.Info("notification issued",
		slog.String("recipient", n.Recipient),
		slog.String("template", string(n.Template)),
		slog.String("action_url", n.ActionURL),
	)
	return nil
}
