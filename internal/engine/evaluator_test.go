package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/storage"
)

// recordingDispatcher counts hand-offs instead of delivering.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []int64
}

func (d *recordingDispatcher) Send(_ context.Context, sub *models.Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sub.ID)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type evalFixture struct {
	mem        *storage.Memory
	instrument *models.Instrument
	owner      int64
	dispatcher *recordingDispatcher
	evaluator  *Evaluator
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()
	ctx := context.Background()

	mem := storage.NewMemory()
	mem.AddCurrency("USD")

	ex := &models.Exchange{MIC: "XNYS"}
	if err := mem.Exchanges().Create(ctx, ex); err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	instr := &models.Instrument{Symbol: "AAPL", ExchangeID: ex.ID}
	if err := mem.Instruments().Create(ctx, instr); err != nil {
		t.Fatalf("create instrument: %v", err)
	}
	owner := mem.AddUser(models.User{Email: "owner@example.com"})

	dispatcher := &recordingDispatcher{}
	return &evalFixture{
		mem:        mem,
		instrument: instr,
		owner:      owner,
		dispatcher: dispatcher,
		evaluator:  NewEvaluator(mem.Subscriptions(), dispatcher, testLogger()),
	}
}

func (f *evalFixture) stepSubscription(t *testing.T, threshold float64) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		Kind:         models.KindStep,
		OwnerID:      f.owner,
		InstrumentID: f.instrument.ID,
		Property:     models.PropertyPrice,
		Channel:      models.ChannelEmail,
		Title:        "price moved",
		Active:       true,
		Threshold:    threshold,
	}
	if err := f.mem.Subscriptions().Create(context.Background(), sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

// observe appends a price tick and runs the evaluator on it, the way the
// poll job does after every append. It waits for dispatch hand-offs so
// assertions on the dispatcher are deterministic.
func (f *evalFixture) observe(t *testing.T, value float64) *models.Tick {
	t.Helper()
	ctx := context.Background()
	tick, err := f.mem.Ticks().Append(ctx, f.instrument.ID, models.PropertyPrice, "USD", value)
	if err != nil {
		t.Fatalf("append tick: %v", err)
	}
	if err := f.evaluator.Evaluate(ctx, tick); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	f.evaluator.Wait()
	return tick
}

func TestFirstObservationOnlyEstablishesBaseline(t *testing.T) {
	f := newEvalFixture(t)
	sub := f.stepSubscription(t, 0.5)

	tick := f.observe(t, 3.5)

	if got := f.dispatcher.count(); got != 0 {
		t.Errorf("fired %d times on first observation, want 0", got)
	}

	subs, _ := f.mem.Subscriptions().ActiveSteps(context.Background(), f.instrument.ID, models.PropertyPrice)
	if len(subs) != 1 || subs[0].ID != sub.ID {
		t.Fatalf("unexpected subscriptions: %+v", subs)
	}
	if subs[0].ReferenceTickID != tick.ID {
		t.Errorf("baseline = %d, want %d", subs[0].ReferenceTickID, tick.ID)
	}
}

func TestFiresOnUpwardStep(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	f.observe(t, 3.5)
	f.observe(t, 4.0)

	if got := f.dispatcher.count(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestFiresOnDownwardStep(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	f.observe(t, 3.5)
	f.observe(t, 3.0)

	if got := f.dispatcher.count(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestChangeBelowThresholdDoesNotFire(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	f.observe(t, 3.5)
	f.observe(t, 3.99)

	if got := f.dispatcher.count(); got != 0 {
		t.Errorf("fired %d times, want 0", got)
	}
}

func TestFluctuationsWithinBandNeverFire(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	open := 3.5
	f.observe(t, open)
	for i := 1; i < 5; i++ {
		f.observe(t, open+float64(i)*0.1)
	}
	for i := 1; i < 5; i++ {
		f.observe(t, open-float64(i)*0.1)
	}

	// The walk stays strictly inside (3.0, 4.0), so with the baseline
	// pinned at 3.5 nothing may fire.
	if got := f.dispatcher.count(); got != 0 {
		t.Errorf("fired %d times, want 0", got)
	}
}

func TestCrossingSequenceFiresExactlyFourTimes(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	f.observe(t, 3.5) // baseline
	fires := []struct {
		value float64
		total int
	}{
		{4.0, 1}, // 3.5 -> 4.0 crosses, new baseline 4.0
		{4.2, 1}, // within band of 4.0
		{4.5, 2}, // 4.5 - 4.0 = 0.5, inclusive bound fires
		{6.0, 3}, // big jump
		{5.7, 3}, // within band of 6.0
		{5.5, 4}, // 6.0 - 5.5 = 0.5 fires downward
	}

	for _, step := range fires {
		f.observe(t, step.value)
		if got := f.dispatcher.count(); got != step.total {
			t.Errorf("after observing %.2f: fired %d times, want %d",
				step.value, got, step.total)
		}
	}
}

func TestNonFiringTickDoesNotAdvanceBaseline(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)

	base := f.observe(t, 3.5)
	f.observe(t, 3.8) // below threshold

	subs, _ := f.mem.Subscriptions().ActiveSteps(context.Background(), f.instrument.ID, models.PropertyPrice)
	if subs[0].ReferenceTickID != base.ID {
		t.Errorf("baseline moved to %d after non-firing tick, want %d",
			subs[0].ReferenceTickID, base.ID)
	}

	// 3.5 -> 3.8 -> 4.0: the two small moves accumulate to a crossing.
	f.observe(t, 4.0)
	if got := f.dispatcher.count(); got != 1 {
		t.Errorf("fired %d times, want 1 accumulated crossing", got)
	}
}

func TestIndependentSubscriptionsEvaluatedSeparately(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)
	f.stepSubscription(t, 2.0)

	f.observe(t, 3.5)
	f.observe(t, 4.2) // crosses 0.5, not 2.0

	if got := f.dispatcher.count(); got != 1 {
		t.Errorf("fired %d times, want 1 (only the tight threshold)", got)
	}

	f.observe(t, 6.0) // crosses both (4.2+0.5 and 3.5+2.0)
	if got := f.dispatcher.count(); got != 3 {
		t.Errorf("fired %d times, want 3", got)
	}
}

// staleStepStore serves pre-captured subscription snapshots, emulating a
// second evaluator racing on the same subscription.
type staleStepStore struct {
	storage.SubscriptionStore
	stale []*models.Subscription
}

func (s *staleStepStore) ActiveSteps(context.Context, int64, models.Property) ([]*models.Subscription, error) {
	return s.stale, nil
}

func TestLostBaselineRaceDoesNotFire(t *testing.T) {
	f := newEvalFixture(t)
	f.stepSubscription(t, 0.5)
	ctx := context.Background()

	f.observe(t, 3.5)

	// Capture the subscription with its current baseline, then let a
	// "concurrent" evaluation advance it.
	stale, err := f.mem.Subscriptions().ActiveSteps(ctx, f.instrument.ID, models.PropertyPrice)
	if err != nil {
		t.Fatalf("ActiveSteps: %v", err)
	}
	winner := f.observe(t, 4.0)
	if got := f.dispatcher.count(); got != 1 {
		t.Fatalf("winner fired %d times, want 1", got)
	}

	// Replay the same crossing against the stale snapshot.
	loser := NewEvaluator(
		&staleStepStore{SubscriptionStore: f.mem.Subscriptions(), stale: stale},
		f.dispatcher,
		testLogger(),
	)
	if err := loser.Evaluate(ctx, winner); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	loser.Wait()

	if got := f.dispatcher.count(); got != 1 {
		t.Errorf("fired %d times total, want 1: the lost race must not fire", got)
	}
}
