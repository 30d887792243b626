// Package feed streams appended observations to Kafka for downstream
// consumers (audit, analytics). Publishing is best-effort and never part
// of the trigger-evaluation path.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/finotif/finotif/internal/models"
)

// tickEvent is the wire shape of one published observation.
type tickEvent struct {
	TickID       int64     `json:"tick_id"`
	InstrumentID int64     `json:"instrument_id"`
	Property     string    `json:"property"`
	Currency     string    `json:"currency"`
	Value        float64   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

// Publisher writes tick events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Publisher for the given broker and topic.
func NewPublisher(broker, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(broker),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// Publish sends one tick event. Failures are logged and dropped; the
// engine's persistence and evaluation do not depend on the feed.
func (p *Publisher) Publish(ctx context.Context, tick *models.Tick) {
	payload, err := json.Marshal(tickEvent{
		TickID:       tick.ID,
		InstrumentID: tick.InstrumentID,
		Property:     string(tick.Property),
		Currency:     tick.CurrencyCode,
		Value:        tick.Value,
		CreatedAt:    tick.CreatedAt,
	})
	if err != nil {
		p.logger.Error("tick feed marshal failed", "tick_id", tick.ID, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(strconv.FormatInt(tick.InstrumentID, 10)),
		Value: payload,
	})
	if err != nil && ctx.Err() == nil {
		p.logger.Error("tick feed write failed", "tick_id", tick.ID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
