package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finotif/finotif/internal/models"
)

// routedTransport fans Deliver out to the per-channel transports.
type routedTransport struct {
	email Transport
	push  Transport
}

// NewRoutedTransport combines an email and a push transport behind the
// single Transport boundary.
func NewRoutedTransport(email, push Transport) Transport {
	return &routedTransport{email: email, push: push}
}

func (t *routedTransport) Deliver(ctx context.Context, channel models.Channel, recipient, subject, body string) error {
	switch channel {
	case models.ChannelEmail:
		return t.email.Deliver(ctx, channel, recipient, subject, body)
	case models.ChannelPush:
		return t.push.Deliver(ctx, channel, recipient, subject, body)
	default:
		return fmt.Errorf("no transport for channel %q", channel)
	}
}

// SMTPTransport delivers email notifications through a plain SMTP relay.
type SMTPTransport struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPTransport creates an SMTP transport. addr is host:port;
// username may be empty for an unauthenticated relay.
func NewSMTPTransport(addr, from, username, password string) *SMTPTransport {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPTransport{addr: addr, from: from, auth: auth}
}

func (t *SMTPTransport) Deliver(_ context.Context, _ models.Channel, recipient, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		t.from, recipient, subject, body)
	if err := smtp.SendMail(t.addr, t.auth, t.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}

// TelegramTransport delivers push notifications as Telegram messages.
// The recipient is the user's chat ID.
type TelegramTransport struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramTransport creates a Telegram transport from a bot token.
func NewTelegramTransport(token string) (*TelegramTransport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramTransport{bot: bot}, nil
}

func (t *TelegramTransport) Deliver(_ context.Context, _ models.Channel, recipient, subject, body string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// LogTransport writes notifications to the log instead of delivering
// them. Used when a channel's transport is not configured.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a log-only transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Deliver(_ context.Context, channel models.Channel, recipient, subject, _ string) error {
	t.logger.Info("notification (log transport)",
		"channel", channel, "recipient", recipient, "subject", subject)
	return nil
}
