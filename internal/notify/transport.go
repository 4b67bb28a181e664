// Package notify delivers reminder and digest emails. Delivery itself
// belongs to a downstream mailer; transports here hand messages over.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Transport hands one email to the delivery infrastructure.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogTransport only logs messages. It is the default when no broker is
// configured.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, to, subject, body string) error {
	t.logger.Info("Email handed to log transport",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
