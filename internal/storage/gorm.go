package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/finotif/finotif/internal/models"
)

// gormTickStore implements TickStore on Postgres via gorm.
type gormTickStore struct {
	db *gorm.DB
}

// NewGormTickStore creates a Postgres-backed tick store.
func NewGormTickStore(db *gorm.DB) TickStore {
	return &gormTickStore{db: db}
}

func (s *gormTickStore) Append(ctx context.Context, instrumentID int64, property models.Property, currencyCode string, value float64) (*models.Tick, error) {
	if value <= 0 {
		return nil, fmt.Errorf("%w: %v (%s)", models.ErrInvalidValue, value, property)
	}

	code := models.NormalizeSymbol(currencyCode)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Currency{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check currency: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCurrency, currencyCode)
	}

	tick := &models.Tick{
		Value:        value,
		Property:     property,
		CurrencyCode: code,
		InstrumentID: instrumentID,
	}
	if err := s.db.WithContext(ctx).Create(tick).Error; err != nil {
		return nil, fmt.Errorf("append tick: %w", err)
	}
	return tick, nil
}

func (s *gormTickStore) LatestFor(ctx context.Context, instrumentID int64, property models.Property) (*models.Tick, error) {
	var tick models.Tick
	err := s.db.WithContext(ctx).
		Where("instrument_id = ? AND property = ?", instrumentID, property).
		Order("created_at DESC, id DESC").
		First(&tick).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest tick: %w", err)
	}
	return &tick, nil
}

// gormSubscriptionStore implements SubscriptionStore on Postgres.
type gormSubscriptionStore struct {
	db *gorm.DB
}

// NewGormSubscriptionStore creates a Postgres-backed subscription store.
func NewGormSubscriptionStore(db *gorm.DB) SubscriptionStore {
	return &gormSubscriptionStore{db: db}
}

func (s *gormSubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup := tx.Model(&models.Subscription{}).
			Where("owner_id = ? AND instrument_id = ? AND kind = ?", sub.OwnerID, sub.InstrumentID, sub.Kind)
		switch sub.Kind {
		case models.KindStep:
			dup = dup.Where("threshold = ?", sub.Threshold)
		case models.KindInterval:
			dup = dup.Where("report_interval = ?", sub.Interval)
		}

		var count int64
		if err := dup.Count(&count).Error; err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if count > 0 {
			return models.ErrDuplicateSubscription
		}

		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return nil
	})
}

func (s *gormSubscriptionStore) Deactivate(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate subscription: %w", res.Error)
	}
	return nil
}

func (s *gormSubscriptionStore) ActiveSteps(ctx context.Context, instrumentID int64, property models.Property) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Preload("ReferenceTick").
		Where("kind = ? AND active = ? AND instrument_id = ? AND property = ?",
			models.KindStep, true, instrumentID, property).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("active step subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormSubscriptionStore) ActiveIntervals(ctx context.Context) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Instrument.Exchange").
		Preload("AnchorTick").
		Where("kind = ? AND active = ?", models.KindInterval, true).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("active interval subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormSubscriptionStore) InstrumentsWithActiveSubscriptions(ctx context.Context) ([]*models.Instrument, error) {
	var instruments []*models.Instrument
	err := s.db.WithContext(ctx).
		Preload("Exchange").
		Where("id IN (?)", s.db.Model(&models.Subscription{}).
			Select("DISTINCT instrument_id").
			Where("active = ?", true)).
		Find(&instruments).Error
	if err != nil {
		return nil, fmt.Errorf("instruments with active subscriptions: %w", err)
	}
	return instruments, nil
}

func (s *gormSubscriptionStore) CompareAndSetReference(ctx context.Context, subID, oldTickID, newTickID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND reference_tick_id = ?", subID, oldTickID).
		Update("reference_tick_id", newTickID)
	if res.Error != nil {
		return false, fmt.Errorf("advance reference tick: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormSubscriptionStore) CompareAndSetAnchor(ctx context.Context, subID, oldTickID, newTickID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND anchor_tick_id = ?", subID, oldTickID).
		Update("anchor_tick_id", newTickID)
	if res.Error != nil {
		return false, fmt.Errorf("advance anchor tick: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

type gormExchangeStore struct {
	db *gorm.DB
}

// NewGormExchangeStore creates a Postgres-backed exchange store.
func NewGormExchangeStore(db *gorm.DB) ExchangeStore {
	return &gormExchangeStore{db: db}
}

func (s *gormExchangeStore) ByMIC(ctx context.Context, mic string) (*models.Exchange, error) {
	var ex models.Exchange
	err := s.db.WithContext(ctx).Where("mic = ?", models.NormalizeSymbol(mic)).First(&ex).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exchange by mic: %w", err)
	}
	return &ex, nil
}

func (s *gormExchangeStore) Create(ctx context.Context, ex *models.Exchange) error {
	ex.MIC = models.NormalizeSymbol(ex.MIC)
	if err := s.db.WithContext(ctx).Create(ex).Error; err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

type gormInstrumentStore struct {
	db *gorm.DB
}

// NewGormInstrumentStore creates a Postgres-backed instrument store.
func NewGormInstrumentStore(db *gorm.DB) InstrumentStore {
	return &gormInstrumentStore{db: db}
}

func (s *gormInstrumentStore) BySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	var instr models.Instrument
	err := s.db.WithContext(ctx).
		Preload("Exchange").
		Where("symbol = ?", models.NormalizeSymbol(symbol)).
		First(&instr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("instrument by symbol: %w", err)
	}
	return &instr, nil
}

func (s *gormInstrumentStore) Create(ctx context.Context, instr *models.Instrument) error {
	instr.Symbol = models.NormalizeSymbol(instr.Symbol)
	if err := s.db.WithContext(ctx).Create(instr).Error; err != nil {
		return fmt.Errorf("create instrument: %w", err)
	}
	return nil
}

type gormCurrencyStore struct {
	db *gorm.DB
}

// NewGormCurrencyStore creates a Postgres-backed currency store.
func NewGormCurrencyStore(db *gorm.DB) CurrencyStore {
	return &gormCurrencyStore{db: db}
}

func (s *gormCurrencyStore) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Currency{}).
		Where("code = ?", models.NormalizeSymbol(code)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check currency: %w", err)
	}
	return count > 0, nil
}

type gormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore creates a Postgres-backed user store.
func NewGormUserStore(db *gorm.DB) UserStore {
	return &gormUserStore{db: db}
}

func (s *gormUserStore) ByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	return &user, nil
}

type gormNoteStore struct {
	db *gorm.DB
}

// NewGormNoteStore creates a Postgres-backed note store.
func NewGormNoteStore(db *gorm.DB) NoteStore {
	return &gormNoteStore{db: db}
}

func (s *gormNoteStore) Create(ctx context.Context, note *models.Note) error {
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (s *gormNoteStore) ForInstrument(ctx context.Context, instrumentID int64) ([]*models.Note, error) {
	var notes []*models.Note
	err := s.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("created_at").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("notes for instrument: %w", err)
	}
	return notes, nil
}
