// Package provider fetches point-in-time quote snapshots for instruments
// from an external market-data source.
package provider

import (
	"context"

	"github.com/finotif/finotif/internal/models"
)

// Snapshot is everything the source reports about an instrument at one
// instant. The observable values feed the tick store; the metadata is
// used only when a new instrument is created.
type Snapshot struct {
	Symbol string

	Price    float64
	Bid      float64
	BidSize  float64
	Ask      float64
	AskSize  float64
	Currency string

	Name         string
	ShortName    string
	Description  string
	ExchangeName string
}

// PropertyValue pairs an observable property with its snapshot value.
type PropertyValue struct {
	Property models.Property
	Value    float64
}

// Properties returns the snapshot's observable values in a fixed order,
// so ticks for one instrument are always appended deterministically
// within a poll run.
func (s Snapshot) Properties() []PropertyValue {
	return []PropertyValue{
		{models.PropertyPrice, s.Price},
		{models.PropertyAsk, s.Ask},
		{models.PropertyAskSize, s.AskSize},
		{models.PropertyBid, s.Bid},
		{models.PropertyBidSize, s.BidSize},
	}
}

// Provider fetches a fresh snapshot for a symbol. No caching: every call
// performs a fetch. Implementations return an error wrapping
// models.ErrFetchFailed for any network, HTTP or parse failure; a
// snapshot is all-or-nothing.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (Snapshot, error)
}
