package models

import "time"

// Property is an observable property of an instrument.
type Property string

const (
	PropertyPrice   Property = "PRICE"
	PropertyVolume  Property = "VOLUME"
	PropertyAsk     Property = "ASK"
	PropertyAskSize Property = "ASK_SIZE"
	PropertyBid     Property = "BID"
	PropertyBidSize Property = "BID_SIZE"
)

// KnownProperty reports whether p is one of the observable properties.
func KnownProperty(p Property) bool {
	switch p {
	case PropertyPrice, PropertyVolume, PropertyAsk, PropertyAskSize, PropertyBid, PropertyBidSize:
		return true
	}
	return false
}

// Tick is one immutable observation of one property of one instrument.
// Ticks are append-only: they are never updated or deleted, and CreatedAt
// is assigned at persistence time.
type Tick struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	// Value is the observed value. Only positive values are recorded.
	Value float64 `json:"value"`

	Property     Property `json:"property"`
	CurrencyCode string   `json:"currency_code"`
	InstrumentID int64    `json:"instrument_id"`

	CreatedAt time.Time `json:"created_at"`
}
