package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RoutingKeyEmailSend is consumed by the downstream mailer.
const RoutingKeyEmailSend = "email.send"

// EmailCommand is the payload published for each outgoing email.
type EmailCommand struct {
	MessageID string    `json:"message_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	MIME      []byte    `json:"mime"`
	QueuedAt  time.Time `json:"queued_at"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// AMQPTransport publishes composed messages to the events exchange.
type AMQPTransport struct {
	pub    publisher
	from   string
	now    func() time.Time
	logger *zap.Logger
}

func NewAMQPTransport(pub publisher, from string, now func() time.Time, logger *zap.Logger) *AMQPTransport {
	if now == nil {
		now = time.Now
	}
	return &AMQPTransport{pub: pub, from: from, now: now, logger: logger}
}

func (t *AMQPTransport) Send(ctx context.Context, to, subject, body string) error {
	at := t.now()
	raw, id, err := Compose(t.from, to, subject, body, at)
	if err != nil {
		return err
	}
	cmd := EmailCommand{MessageID: id, To: to, Subject: subject, MIME: raw, QueuedAt: at}
	if err := t.pub.PublishWithContext(ctx, RoutingKeyEmailSend, cmd); err != nil {
		t.logger.Error("Failed to publish email command",
			zap.String("to", to),
			zap.String("message_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("publishing %s: %w", RoutingKeyEmailSend, err)
	}
	t.logger.Info("Published email command",
		zap.String("to", to),
		zap.String("message_id", id),
	)
	return nil
}
