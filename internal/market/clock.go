// Package market decides whether an exchange is open for trading.
package market

import (
	"time"

	"github.com/finotif/finotif/internal/models"
)

// IsOpen reports whether ex is open at the given instant. Saturdays and
// Sundays (by UTC weekday) are always closed; otherwise the exchange's
// daily window applies, inclusive on both bounds at second precision:
// open at exactly 14:30:00 and at exactly 21:30:00, closed at 21:30:01.
// Pure function: the caller supplies the clock value.
func IsOpen(ex models.Exchange, now time.Time) bool {
	now = now.UTC()
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	secs := now.Hour()*3600 + now.Minute()*60 + now.Second()
	return int(ex.OpensAt)*60 <= secs && secs <= int(ex.ClosesAt)*60
}
