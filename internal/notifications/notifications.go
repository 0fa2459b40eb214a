// Package notifications delivers best-effort messages to operators. Delivery failures are
// logged and counted, never returned.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

// Kind tags a message so consumers can route it.
type Kind string

const KindGiftTimerExpired Kind = "gift_timer_expired"

// Message is one notification addressed to a single user.
type Message struct {
	RecipientID uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Kind        Kind
	Text        string
	CreatedAt   time.Time
}

// Dispatcher sends a message without reporting failure to the caller.
type Dispatcher interface {
	Notify(ctx context.Context, msg Message)
}

// GiftTimerExpired builds the reminder sent to an order's fulfiller when its timer runs out.
// ok is false when the order has no fulfiller to notify.
func GiftTimerExpired(order models.Order, at time.Time) (Message, bool) {
	if order.IsUnassigned() {
		return Message{}, false
	}
	return Message{
		RecipientID: *order.SupplierID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Kind:        KindGiftTimerExpired,
		Text: fmt.Sprintf("gift timer for order #%s (buyer id %s) has expired, please send the gift",
			order.OrderNumber, order.BuyerGameID),
		CreatedAt: at,
	}, true
}

// LogDispatcher writes messages to the log. It is used when no broker is configured.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Notify(ctx context.Context, msg Message) {
	logCtx := d.logg.WithFields(ctx, messageFields(msg))
	d.logg.Info(logCtx, "notification dispatched to log")
}

func messageFields(msg Message) map[string]any {
	return map[string]any{
		"recipient_id": msg.RecipientID.String(),
		"order_id":     msg.OrderID.String(),
		"kind":         string(msg.Kind),
	}
}
