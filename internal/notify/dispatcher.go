// Package notify routes fired subscriptions to their delivery channel
// through a narrow transport boundary. Delivery is best-effort: failures
// are logged and never retried here, and trigger state is already
// advanced before delivery starts, so a flaky transport cannot cause
// notification storms.
package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/storage"
)

// Transport delivers one rendered notification to one recipient on one
// channel. Retry policy, if any, belongs to the implementation.
type Transport interface {
	Deliver(ctx context.Context, channel models.Channel, recipient, subject, body string) error
}

// Dispatcher resolves a fired subscription's recipient and hands the
// notification to the transport.
type Dispatcher struct {
	users     storage.UserStore
	transport Transport
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(users storage.UserStore, transport Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{users: users, transport: transport, logger: logger}
}

// Send delivers sub's notification on its channel. Side-effect only: an
// unknown channel or a failed delivery logs a warning or error and
// nothing else.
func (d *Dispatcher) Send(ctx context.Context, sub *models.Subscription) {
	user, err := d.users.ByID(ctx, sub.OwnerID)
	if err != nil {
		d.logger.Error("cannot resolve notification recipient",
			"subscription_id", sub.ID, "owner_id", sub.OwnerID, "error", err)
		return
	}
	if user == nil {
		d.logger.Error("notification owner not found",
			"subscription_id", sub.ID, "owner_id", sub.OwnerID)
		return
	}

	var recipient string
	switch sub.Channel {
	case models.ChannelEmail:
		recipient = user.Email
	case models.ChannelPush:
		recipient = strconv.FormatInt(user.TelegramChatID, 10)
	default:
		d.logger.Warn("cannot send notification: unknown channel",
			"subscription_id", sub.ID, "channel", sub.Channel)
		return
	}

	deliveryID := uuid.NewString()
	if err := d.transport.Deliver(ctx, sub.Channel, recipient, sub.Title, sub.Content); err != nil {
		d.logger.Error("delivery failed",
			"delivery_id", deliveryID,
			"subscription_id", sub.ID,
			"channel", sub.Channel,
			"error", err)
		return
	}
	d.logger.Info("notification delivered",
		"delivery_id", deliveryID,
		"subscription_id", sub.ID,
		"channel", sub.Channel)
}
