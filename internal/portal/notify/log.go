package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// LogNotifier writes codes to the log instead of sending them. Development
// only: anyone who can read the logs can sign in as anyone.
type LogNotifier struct{}

func (LogNotifier) SendCode(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Warn("verification code (not delivered)",
		slog.String("email", msg.Email),
		slog.String("code", msg.Code),
		slog.Duration("expires_in", msg.ExpiresIn),
	)
	return nil
}
