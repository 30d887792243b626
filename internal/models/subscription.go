package models

import "time"

// SubscriptionKind discriminates the two subscription variants.
type SubscriptionKind string

const (
	// KindStep fires when a property moves by at least Threshold away
	// from the subscription's reference tick, in either direction.
	KindStep SubscriptionKind = "STEP"

	// KindInterval fires when at least Interval has elapsed since the
	// anchor tick, reporting the latest observation.
	KindInterval SubscriptionKind = "INTERVAL"
)

// Channel is the delivery channel of a subscription.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
)

// KnownChannel reports whether c is a supported delivery channel.
func KnownChannel(c Channel) bool {
	return c == ChannelEmail || c == ChannelPush
}

// Subscription is a user's standing request to be notified about one
// property of one instrument. Kind selects which of the variant fields
// are meaningful.
//
// ReferenceTickID and AnchorTickID use 0 for "not yet established"; both
// are advanced only through the store's compare-and-set operations so
// that concurrent evaluations of the same subscription cannot both fire
// on a stale baseline.
type Subscription struct {
	ID   int64            `json:"id" gorm:"primaryKey"`
	Kind SubscriptionKind `json:"kind"`

	OwnerID      int64       `json:"owner_id"`
	InstrumentID int64       `json:"instrument_id"`
	Instrument   *Instrument `json:"-"`
	Property     Property    `json:"property"`

	Channel Channel `json:"channel"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Active  bool    `json:"active"`

	// Threshold is the step size of a KindStep subscription. Always > 0.
	Threshold float64 `json:"threshold,omitempty"`

	// ReferenceTickID is the baseline a KindStep subscription measures
	// change against. 0 until the first relevant observation arrives.
	ReferenceTickID int64 `json:"reference_tick_id,omitempty"`
	ReferenceTick   *Tick `json:"-"`

	// Interval is the reporting period of a KindInterval subscription.
	// Always > 0. Stored as nanoseconds; the column avoids the reserved
	// SQL word "interval".
	Interval time.Duration `json:"interval,omitempty" gorm:"column:report_interval"`

	// AnchorTickID is the observation a KindInterval subscription last
	// reported. 0 until the subscription fires for the first time.
	AnchorTickID int64 `json:"anchor_tick_id,omitempty"`
	AnchorTick   *Tick `json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at" gorm:"autoUpdateTime"`
}
