package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finotif/finotif/internal/models"
)

// Memory holds every store backed by plain maps under one mutex. It is
// used by tests and local runs without a database; behavior matches the
// gorm stores, including the compare-and-set semantics.
type Memory struct {
	mu sync.Mutex

	currencies  map[string]struct{}
	exchanges   map[int64]models.Exchange
	instruments map[int64]models.Instrument
	users       map[int64]models.User
	ticks       []models.Tick
	ticksByID   map[int64]models.Tick
	subs        map[int64]models.Subscription
	notes       []models.Note

	lastExchangeID   int64
	lastInstrumentID int64
	lastUserID       int64
	lastTickID       int64
	lastSubID        int64
	lastNoteID       int64
}

// NewMemory creates an empty in-memory store set.
func NewMemory() *Memory {
	return &Memory{
		currencies:  make(map[string]struct{}),
		exchanges:   make(map[int64]models.Exchange),
		instruments: make(map[int64]models.Instrument),
		users:       make(map[int64]models.User),
		ticksByID:   make(map[int64]models.Tick),
		subs:        make(map[int64]models.Subscription),
	}
}

// AddCurrency seeds one currency code into the reference table.
func (m *Memory) AddCurrency(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currencies[models.NormalizeSymbol(code)] = struct{}{}
}

// AddUser seeds a user and returns its assigned ID.
func (m *Memory) AddUser(user models.User) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUserID++
	user.ID = m.lastUserID
	m.users[user.ID] = user
	return user.ID
}

// Ticks returns the TickStore view.
func (m *Memory) Ticks() TickStore { return memTicks{m} }

// Subscriptions returns the SubscriptionStore view.
func (m *Memory) Subscriptions() SubscriptionStore { return memSubs{m} }

// Exchanges returns the ExchangeStore view.
func (m *Memory) Exchanges() ExchangeStore { return memExchanges{m} }

// Instruments returns the InstrumentStore view.
func (m *Memory) Instruments() InstrumentStore { return memInstruments{m} }

// Currencies returns the CurrencyStore view.
func (m *Memory) Currencies() CurrencyStore { return memCurrencies{m} }

// Users returns the UserStore view.
func (m *Memory) Users() UserStore { return memUsers{m} }

// Notes returns the NoteStore view.
func (m *Memory) Notes() NoteStore { return memNotes{m} }

type memTicks struct{ m *Memory }

func (s memTicks) Append(_ context.Context, instrumentID int64, property models.Property, currencyCode string, value float64) (*models.Tick, error) {
	if value <= 0 {
		return nil, fmt.Errorf("%w: %v (%s)", models.ErrInvalidValue, value, property)
	}

	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	code := models.NormalizeSymbol(currencyCode)
	if _, ok := m.currencies[code]; !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCurrency, currencyCode)
	}

	m.lastTickID++
	tick := models.Tick{
		ID:           m.lastTickID,
		Value:        value,
		Property:     property,
		CurrencyCode: code,
		InstrumentID: instrumentID,
		CreatedAt:    time.Now().UTC(),
	}
	m.ticks = append(m.ticks, tick)
	m.ticksByID[tick.ID] = tick

	out := tick
	return &out, nil
}

func (s memTicks) LatestFor(_ context.Context, instrumentID int64, property models.Property) (*models.Tick, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	// Ticks are held in append order; the last match is the latest.
	for i := len(m.ticks) - 1; i >= 0; i-- {
		if m.ticks[i].InstrumentID == instrumentID && m.ticks[i].Property == property {
			out := m.ticks[i]
			return &out, nil
		}
	}
	return nil, nil
}

type memSubs struct{ m *Memory }

func (s memSubs) Create(_ context.Context, sub *models.Subscription) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.subs {
		if existing.OwnerID != sub.OwnerID ||
			existing.InstrumentID != sub.InstrumentID ||
			existing.Kind != sub.Kind {
			continue
		}
		switch sub.Kind {
		case models.KindStep:
			if existing.Threshold == sub.Threshold {
				return models.ErrDuplicateSubscription
			}
		case models.KindInterval:
			if existing.Interval == sub.Interval {
				return models.ErrDuplicateSubscription
			}
		}
	}

	m.lastSubID++
	sub.ID = m.lastSubID
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.ModifiedAt = now
	m.subs[sub.ID] = *sub
	return nil
}

func (s memSubs) Deactivate(_ context.Context, id int64) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[id]; ok {
		sub.Active = false
		sub.ModifiedAt = time.Now().UTC()
		m.subs[id] = sub
	}
	return nil
}

func (s memSubs) ActiveSteps(_ context.Context, instrumentID int64, property models.Property) ([]*models.Subscription, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Subscription
	for _, sub := range m.subs {
		if sub.Kind != models.KindStep || !sub.Active ||
			sub.InstrumentID != instrumentID || sub.Property != property {
			continue
		}
		out = append(out, m.hydrate(sub))
	}
	return out, nil
}

func (s memSubs) ActiveIntervals(_ context.Context) ([]*models.Subscription, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Subscription
	for _, sub := range m.subs {
		if sub.Kind != models.KindInterval || !sub.Active {
			continue
		}
		out = append(out, m.hydrate(sub))
	}
	return out, nil
}

func (s memSubs) InstrumentsWithActiveSubscriptions(_ context.Context) ([]*models.Instrument, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]struct{})
	var out []*models.Instrument
	for _, sub := range m.subs {
		if !sub.Active {
			continue
		}
		if _, ok := seen[sub.InstrumentID]; ok {
			continue
		}
		seen[sub.InstrumentID] = struct{}{}
		if instr, ok := m.instruments[sub.InstrumentID]; ok {
			instr.Exchange = m.exchanges[instr.ExchangeID]
			out = append(out, &instr)
		}
	}
	return out, nil
}

func (s memSubs) CompareAndSetReference(_ context.Context, subID, oldTickID, newTickID int64) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subID]
	if !ok || sub.ReferenceTickID != oldTickID {
		return false, nil
	}
	sub.ReferenceTickID = newTickID
	sub.ModifiedAt = time.Now().UTC()
	m.subs[subID] = sub
	return true, nil
}

func (s memSubs) CompareAndSetAnchor(_ context.Context, subID, oldTickID, newTickID int64) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subID]
	if !ok || sub.AnchorTickID != oldTickID {
		return false, nil
	}
	sub.AnchorTickID = newTickID
	sub.ModifiedAt = time.Now().UTC()
	m.subs[subID] = sub
	return true, nil
}

// hydrate returns a detached copy of sub with its referenced tick and
// instrument attached. Caller must hold the mutex.
func (m *Memory) hydrate(sub models.Subscription) *models.Subscription {
	out := sub
	if tick, ok := m.ticksByID[sub.ReferenceTickID]; ok {
		t := tick
		out.ReferenceTick = &t
	}
	if tick, ok := m.ticksByID[sub.AnchorTickID]; ok {
		t := tick
		out.AnchorTick = &t
	}
	if instr, ok := m.instruments[sub.InstrumentID]; ok {
		instr.Exchange = m.exchanges[instr.ExchangeID]
		out.Instrument = &instr
	}
	return &out
}

type memExchanges struct{ m *Memory }

func (s memExchanges) ByMIC(_ context.Context, mic string) (*models.Exchange, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	mic = models.NormalizeSymbol(mic)
	for _, ex := range m.exchanges {
		if ex.MIC == mic {
			out := ex
			return &out, nil
		}
	}
	return nil, nil
}

func (s memExchanges) Create(_ context.Context, ex *models.Exchange) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastExchangeID++
	ex.ID = m.lastExchangeID
	ex.MIC = models.NormalizeSymbol(ex.MIC)
	now := time.Now().UTC()
	ex.CreatedAt = now
	ex.ModifiedAt = now
	m.exchanges[ex.ID] = *ex
	return nil
}

type memInstruments struct{ m *Memory }

func (s memInstruments) BySymbol(_ context.Context, symbol string) (*models.Instrument, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol = models.NormalizeSymbol(symbol)
	for _, instr := range m.instruments {
		if instr.Symbol == symbol {
			instr.Exchange = m.exchanges[instr.ExchangeID]
			out := instr
			return &out, nil
		}
	}
	return nil, nil
}

func (s memInstruments) Create(_ context.Context, instr *models.Instrument) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastInstrumentID++
	instr.ID = m.lastInstrumentID
	instr.Symbol = models.NormalizeSymbol(instr.Symbol)
	now := time.Now().UTC()
	instr.CreatedAt = now
	instr.ModifiedAt = now
	m.instruments[instr.ID] = *instr
	return nil
}

type memCurrencies struct{ m *Memory }

func (s memCurrencies) Exists(_ context.Context, code string) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.currencies[models.NormalizeSymbol(code)]
	return ok, nil
}

type memUsers struct{ m *Memory }

func (s memUsers) ByID(_ context.Context, id int64) (*models.User, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[id]; ok {
		out := user
		return &out, nil
	}
	return nil, nil
}

type memNotes struct{ m *Memory }

func (s memNotes) Create(_ context.Context, note *models.Note) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastNoteID++
	note.ID = m.lastNoteID
	now := time.Now().UTC()
	note.CreatedAt = now
	note.ModifiedAt = now
	m.notes = append(m.notes, *note)
	return nil
}

func (s memNotes) ForInstrument(_ context.Context, instrumentID int64) ([]*models.Note, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Note
	for _, note := range m.notes {
		if note.InstrumentID == instrumentID {
			n := note
			out = append(out, &n)
		}
	}
	return out, nil
}
