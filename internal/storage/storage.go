// Package storage provides persistence for the alerting engine: the
// append-only tick log, the subscription registry and the reference
// tables. Implementations must be safe for concurrent use.
package storage

import (
	"context"

	"github.com/finotif/finotif/internal/models"
)

// TickStore is the append-only observation log. There is no update or
// delete path.
type TickStore interface {
	// Append records one observation and assigns its creation timestamp.
	// Returns models.ErrInvalidValue when value <= 0 and
	// models.ErrUnknownCurrency when the currency code is not in the
	// reference table.
	Append(ctx context.Context, instrumentID int64, property models.Property, currencyCode string, value float64) (*models.Tick, error)

	// LatestFor returns the most recent tick for (instrument, property),
	// or nil when none exists.
	LatestFor(ctx context.Context, instrumentID int64, property models.Property) (*models.Tick, error)
}

// SubscriptionStore is the registry of alert subscriptions.
//
// The two CompareAndSet operations are the engine's only mutation of
// trigger state: they advance the reference or anchor tick of one
// subscription atomically, succeeding only when the stored tick ID still
// equals old (0 meaning "not yet established"). Two concurrent
// evaluations of the same subscription therefore cannot both fire from
// the same baseline.
type SubscriptionStore interface {
	// Create validates uniqueness and persists a new subscription.
	// Returns models.ErrDuplicateSubscription when the owner already has
	// a subscription for the same instrument with the same threshold
	// (step) or interval (interval).
	Create(ctx context.Context, sub *models.Subscription) error

	// Deactivate flips Active to false. Subscriptions are never deleted.
	Deactivate(ctx context.Context, id int64) error

	// ActiveSteps returns active step subscriptions watching
	// (instrument, property), with ReferenceTick populated.
	ActiveSteps(ctx context.Context, instrumentID int64, property models.Property) ([]*models.Subscription, error)

	// ActiveIntervals returns all active interval subscriptions, with
	// Instrument (including Exchange) and AnchorTick populated.
	ActiveIntervals(ctx context.Context) ([]*models.Subscription, error)

	// InstrumentsWithActiveSubscriptions returns the distinct
	// instruments referenced by at least one active subscription of
	// either kind, with Exchange populated.
	InstrumentsWithActiveSubscriptions(ctx context.Context) ([]*models.Instrument, error)

	// CompareAndSetReference advances a step subscription's baseline
	// from oldTickID to newTickID. Reports whether the swap happened.
	CompareAndSetReference(ctx context.Context, subID, oldTickID, newTickID int64) (bool, error)

	// CompareAndSetAnchor advances an interval subscription's anchor
	// from oldTickID to newTickID. Reports whether the swap happened.
	CompareAndSetAnchor(ctx context.Context, subID, oldTickID, newTickID int64) (bool, error)
}

// ExchangeStore is the exchange reference table.
type ExchangeStore interface {
	// ByMIC looks an exchange up by Market Identifier Code, or nil when
	// the code is unknown.
	ByMIC(ctx context.Context, mic string) (*models.Exchange, error)

	Create(ctx context.Context, ex *models.Exchange) error
}

// InstrumentStore persists instruments.
type InstrumentStore interface {
	// BySymbol returns the instrument with Exchange populated, or nil
	// when the symbol is unknown.
	BySymbol(ctx context.Context, symbol string) (*models.Instrument, error)

	Create(ctx context.Context, instr *models.Instrument) error
}

// CurrencyStore is the fixed currency reference table.
type CurrencyStore interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// UserStore resolves notification recipients. Account management lives
// outside the engine.
type UserStore interface {
	ByID(ctx context.Context, id int64) (*models.User, error)
}

// NoteStore persists user notes attached to instruments.
type NoteStore interface {
	Create(ctx context.Context, note *models.Note) error
	ForInstrument(ctx context.Context, instrumentID int64) ([]*models.Note, error)
}
