package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a UTC wall-clock time expressed as minutes since midnight.
// It is what exchanges publish as their opening and closing times.
type TimeOfDay int

// ParseTimeOfDay parses a "HH:MM" string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("time of day must be HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time of day must be HH:MM, got %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time of day must be HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// String renders the time of day back as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Exchange is a trading venue identified by its Market Identifier Code.
// Opening hours are kept in UTC; the window is inclusive on both bounds.
type Exchange struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	MIC         string `json:"mic" gorm:"uniqueIndex"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// OpensAt and ClosesAt bound the daily trading window (UTC).
	OpensAt  TimeOfDay `json:"opens_at"`
	ClosesAt TimeOfDay `json:"closes_at"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at" gorm:"autoUpdateTime"`
}

// Currency is one row of the fixed 3-letter currency reference table.
type Currency struct {
	Code string `json:"code" gorm:"primaryKey;size:3"`
}
