package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

// Payload is the JSON body published for each message.
type Payload struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

type failureCounter interface {
	IncNotificationFailure()
}

// PubSubDispatcherParams configures a PubSubDispatcher.
type PubSubDispatcherParams struct {
	Publisher *pubsub.Publisher
	Logger    *logger.Logger
	Metrics   failureCounter
	Timeout   time.Duration
}

// PubSubDispatcher publishes messages to the notification topic.
type PubSubDispatcher struct {
	publish publishFunc
	logg    *logger.Logger
	metrics failureCounter
	timeout time.Duration
}

// NewPubSubDispatcher wraps the notification topic publisher.
func NewPubSubDispatcher(params PubSubDispatcherParams) (*PubSubDispatcher, error) {
	if params.Publisher == nil {
		return nil, fmt.Errorf("notification publisher required")
	}
	publisher := params.Publisher
	return newPubSubDispatcher(func(ctx context.Context, msg *pubsub.Message) (string, error) {
		return publisher.Publish(ctx, msg).Get(ctx)
	}, params), nil
}

func newPubSubDispatcher(publish publishFunc, params PubSubDispatcherParams) *PubSubDispatcher {
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubDispatcher{
		publish: publish,
		logg:    logg,
		metrics: params.Metrics,
		timeout: timeout,
	}
}

func (d *PubSubDispatcher) Notify(ctx context.Context, msg Message) {
	logCtx := d.logg.WithFields(ctx, messageFields(msg))

	data, err := json.Marshal(Payload{
		RecipientID: msg.RecipientID,
		OrderID:     msg.OrderID,
		OrderNumber: msg.OrderNumber,
		Kind:        msg.Kind,
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt.UTC(),
	})
	if err != nil {
		d.fail(logCtx, "notification encode failed", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	serverID, err := d.publish(publishCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":   string(msg.Kind),
			"recipient_id": msg.RecipientID.String(),
		},
	})
	if err != nil {
		d.fail(logCtx, "notification publish failed", err)
		return
	}
	d.logg.Info(d.logg.WithField(logCtx, "message_id", serverID), "notification published")
}

func (d *PubSubDispatcher) fail(ctx context.Context, msg string, err error) {
	if d.metrics != nil {
		d.metrics.IncNotificationFailure()
	}
	d.logg.Error(ctx, msg, err)
}
