package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/pkg/util"
)

// RoutingKeyNotificationEvent carries system events (new inquiry, job
// application, ...) into the notification dispatcher.
const RoutingKeyNotificationEvent = "notification.event"

const maxRetries = 5

type Ingester interface {
	Ingest(ctx context.Context, ev model.NotificationEvent) (model.DispatchPath, error)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, id string) bool
	Forget(ctx context.Context, id string) error
}

type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type DLQPublisher interface {
	PublishToDLQ(routingKey string, payload []byte, originalError, errorType string) error
}

type NotificationEventHandler struct {
	ingester     Ingester
	deduper      Deduper
	retryCounter RetryCounter
	dlq          DLQPublisher
	logger       *zap.Logger
}

// NewNotificationEventHandler builds the handler. deduper, retryCounter and
// dlq may be nil when Redis or the broker publisher is not configured.
func NewNotificationEventHandler(
	ingester Ingester,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DLQPublisher,
	logger *zap.Logger,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		ingester:     ingester,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		logger:       logger,
	}
}

func dedupKey(id string) string {
	return "event:" + id
}

// HandleEvent decodes one event and routes it. Events carrying an id are
// processed at most once; a failed ingest releases the id for redelivery.
func (h *NotificationEventHandler) HandleEvent(ctx context.Context, raw json.RawMessage) error {
	var ev model.NotificationEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.logger.Error("Failed to unmarshal notification event", zap.Error(err))
		return fmt.Errorf("decoding notification event: %w", err)
	}

	if ev.ID != "" && h.deduper != nil && !h.deduper.AcquireOnce(ctx, dedupKey(ev.ID)) {
		h.logger.Info("Skipped duplicated notification event", zap.String("event_id", ev.ID))
		return nil
	}

	path, err := h.ingester.Ingest(ctx, ev)
	if err != nil {
		if ev.ID != "" && h.deduper != nil {
			if ferr := h.deduper.Forget(ctx, dedupKey(ev.ID)); ferr != nil {
				h.logger.Warn("Failed to release dedup marker", zap.String("event_id", ev.ID), zap.Error(ferr))
			}
		}
		return err
	}

	if ev.ID != "" && h.retryCounter != nil {
		_ = h.retryCounter.Reset(ctx, util.FormatRetryKey("notification_event", ev.ID))
	}
	h.logger.Info("Notification event routed",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("path", string(path)),
	)
	return nil
}

// FailurePolicy requeues retryable failures up to maxRetries and parks
// everything else on the dead letter exchange.
func (h *NotificationEventHandler) FailurePolicy(ctx context.Context, msg amqp091.Delivery, err error) bool {
	retryable, errType := util.IsRetryableError(err)

	if retryable {
		id := messageID(msg)
		if id == "" {
			// without an id retries cannot be counted; allow a single redelivery
			if !msg.Redelivered {
				return true
			}
		} else {
			count := int64(1)
			if h.retryCounter != nil {
				n, cerr := h.retryCounter.IncrementAndGet(ctx, util.FormatRetryKey("notification_event", id))
				if cerr != nil {
					h.logger.Warn("Failed to get retry count, continuing anyway", zap.String("event_id", id), zap.Error(cerr))
				} else {
					count = n
				}
			}
			if util.ShouldRetry(count, maxRetries, true) {
				h.logger.Warn("Retrying notification event",
					zap.String("event_id", id),
					zap.String("error_type", errType),
					zap.Int64("retry_count", count),
				)
				return true
			}
			errType = "retries_exhausted"
		}
	}

	if h.dlq == nil {
		h.logger.Error("Dropping notification event, no dead letter publisher",
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return false
	}
	if perr := h.dlq.PublishToDLQ(RoutingKeyNotificationEvent, msg.Body, err.Error(), errType); perr != nil {
		h.logger.Error("Failed to park notification event, requeueing", zap.Error(perr))
		return true
	}
	h.logger.Warn("Notification event parked on DLQ",
		zap.String("error_type", errType),
		zap.Error(err),
	)
	return false
}

// messageID prefers the event id and falls back to the broker message id.
func messageID(msg amqp091.Delivery) string {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Body, &envelope); err == nil && envelope.ID != "" {
		return envelope.ID
	}
	return msg.MessageId
}
