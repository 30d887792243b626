// Package service implements validated subscription management on top of
// the stores and the quote provider.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/storage"
)

// CreateRequest is a subscription creation request as handed over by the
// surrounding API layer.
type CreateRequest struct {
	OwnerID  int64
	Symbol   string
	MIC      string
	Property models.Property
	Channel  models.Channel
	Title    string
	Content  string
	Active   bool

	Kind      models.SubscriptionKind
	Threshold float64       // step subscriptions
	Interval  time.Duration // interval subscriptions
}

// Subscriptions creates and deactivates alert subscriptions, resolving
// (and lazily creating) instruments on the way.
type Subscriptions struct {
	subs        storage.SubscriptionStore
	instruments storage.InstrumentStore
	exchanges   storage.ExchangeStore
	quotes      provider.Provider
	logger      *slog.Logger
}

// NewSubscriptions creates the subscription service.
func NewSubscriptions(
	subs storage.SubscriptionStore,
	instruments storage.InstrumentStore,
	exchanges storage.ExchangeStore,
	quotes provider.Provider,
	logger *slog.Logger,
) *Subscriptions {
	return &Subscriptions{
		subs:        subs,
		instruments: instruments,
		exchanges:   exchanges,
		quotes:      quotes,
		logger:      logger,
	}
}

// Create validates req, resolves or creates its instrument and persists
// the subscription. Validation failures surface the engine's sentinel
// errors so the API layer can map them.
func (s *Subscriptions) Create(ctx context.Context, req CreateRequest) (*models.Subscription, error) {
	switch req.Kind {
	case models.KindStep:
		if req.Threshold <= 0 {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidThreshold, req.Threshold)
		}
	case models.KindInterval:
		if req.Interval <= 0 {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInterval, req.Interval)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidSubscription, req.Kind)
	}
	if !models.KnownProperty(req.Property) {
		return nil, fmt.Errorf("%w: unknown property %q", models.ErrInvalidSubscription, req.Property)
	}
	if !models.KnownChannel(req.Channel) {
		return nil, fmt.Errorf("%w: unknown channel %q", models.ErrInvalidSubscription, req.Channel)
	}

	instr, err := s.resolveInstrument(ctx, req.Symbol, req.MIC)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		Kind:         req.Kind,
		OwnerID:      req.OwnerID,
		InstrumentID: instr.ID,
		Property:     req.Property,
		Channel:      req.Channel,
		Title:        req.Title,
		Content:      req.Content,
		Active:       req.Active,
		Threshold:    req.Threshold,
		Interval:     req.Interval,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"kind", sub.Kind,
		"symbol", instr.Symbol,
		"property", sub.Property)
	return sub, nil
}

// Deactivate flips a subscription's active flag; the engine never
// deletes subscriptions.
func (s *Subscriptions) Deactivate(ctx context.Context, id int64) error {
	return s.subs.Deactivate(ctx, id)
}

// resolveInstrument looks the symbol up, creating the instrument from
// provider metadata when it is new. The exchange must already exist.
func (s *Subscriptions) resolveInstrument(ctx context.Context, symbol, mic string) (*models.Instrument, error) {
	symbol = models.NormalizeSymbol(symbol)

	instr, err := s.instruments.BySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if instr != nil {
		return instr, nil
	}

	ex, err := s.exchanges.ByMIC(ctx, mic)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownExchange, mic)
	}

	snap, err := s.quotes.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrUnknownInstrument, symbol, err)
	}

	instr = &models.Instrument{
		Symbol:      symbol,
		Name:        snap.Name,
		ShortName:   snap.ShortName,
		Description: snap.Description,
		ExchangeID:  ex.ID,
	}
	if err := s.instruments.Create(ctx, instr); err != nil {
		return nil, err
	}
	s.logger.Info("instrument created", "symbol", symbol, "mic", ex.MIC)
	return instr, nil
}
