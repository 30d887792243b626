package models

import (
	"strings"
	"time"
)

// Instrument is a tradable security identified by an upper-case symbol,
// tied to exactly one exchange. Instruments are created lazily the first
// time a subscription references an unknown symbol.
type Instrument struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	Symbol      string `json:"symbol" gorm:"uniqueIndex"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description"`

	ExchangeID int64    `json:"exchange_id"`
	Exchange   Exchange `json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at" gorm:"autoUpdateTime"`
}

// NormalizeSymbol trims and upper-cases a symbol or MIC the way it is
// stored and compared everywhere in the engine.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// User is the minimal projection of an account needed to deliver
// notifications. Account management itself lives outside the engine.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	Email          string    `json:"email" gorm:"uniqueIndex"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Note is a user's free-text note attached to an instrument.
type Note struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"user_id"`
	InstrumentID int64     `json:"instrument_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at" gorm:"autoUpdateTime"`
}
