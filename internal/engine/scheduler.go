package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finotif/finotif/internal/market"
	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/storage"
)

// TickPublisher streams appended ticks to downstream consumers. Publish
// is best-effort and never part of the evaluation path.
type TickPublisher interface {
	Publish(ctx context.Context, tick *models.Tick)
}

// SchedulerConfig holds the deployment parameters of the two jobs.
type SchedulerConfig struct {
	// PollEvery is the cadence of the quote poll job.
	PollEvery time.Duration

	// CheckIntervalsEvery is the cadence of the interval-subscription job.
	CheckIntervalsEvery time.Duration

	// FetchTimeout bounds each provider call. A timed-out fetch is
	// treated like any other fetch failure.
	FetchTimeout time.Duration

	// Workers bounds the parallel instrument fetches within one poll run.
	Workers int

	// Now supplies the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (c *SchedulerConfig) withDefaults() SchedulerConfig {
	out := *c
	if out.PollEvery <= 0 {
		out.PollEvery = time.Minute
	}
	if out.CheckIntervalsEvery <= 0 {
		out.CheckIntervalsEvery = time.Minute
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = 10 * time.Second
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Scheduler drives the two periodic jobs: polling quotes for instruments
// with active subscriptions, and firing interval subscriptions whose
// period has elapsed. Every run is a bounded, independent unit of work;
// one unit's failure is logged and never aborts the pass.
type Scheduler struct {
	quotes     provider.Provider
	ticks      storage.TickStore
	subs       storage.SubscriptionStore
	evaluator  *Evaluator
	dispatcher Dispatcher
	feed       TickPublisher
	logger     *slog.Logger
	cfg        SchedulerConfig
	inflight   sync.WaitGroup
}

// NewScheduler creates a Scheduler. feed may be nil when no tick feed is
// configured.
func NewScheduler(
	quotes provider.Provider,
	ticks storage.TickStore,
	subs storage.SubscriptionStore,
	evaluator *Evaluator,
	dispatcher Dispatcher,
	feed TickPublisher,
	logger *slog.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		quotes:     quotes,
		ticks:      ticks,
		subs:       subs,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		feed:       feed,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// Run blocks, driving both jobs until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"poll_every", s.cfg.PollEvery,
		"check_intervals_every", s.cfg.CheckIntervalsEvery,
		"workers", s.cfg.Workers)

	poll := time.NewTicker(s.cfg.PollEvery)
	defer poll.Stop()
	intervals := time.NewTicker(s.cfg.CheckIntervalsEvery)
	defer intervals.Stop()

	for {
		select {
		case <-ctx.Done():
			// Let in-flight notification hand-offs finish before
			// reporting a clean stop.
			s.Wait()
			s.logger.Info("scheduler stopped")
			return
		case <-poll.C:
			s.PollOnce(ctx)
		case <-intervals.C:
			s.CheckIntervalsOnce(ctx)
		}
	}
}

// Wait blocks until every dispatch handed off by either job has
// completed. The jobs themselves never wait on delivery.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
	s.evaluator.Wait()
}

// PollOnce runs one pass of the poll job: for every instrument with at
// least one active subscription whose exchange is currently open, fetch
// a snapshot, append one tick per positive property and evaluate step
// subscriptions synchronously after each append.
func (s *Scheduler) PollOnce(ctx context.Context) {
	instruments, err := s.subs.InstrumentsWithActiveSubscriptions(ctx)
	if err != nil {
		s.logger.Error("poll: loading instruments failed", "error", err)
		return
	}

	now := s.cfg.Now()
	jobs := make(chan *models.Instrument)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for instr := range jobs {
				s.pollInstrument(ctx, instr)
			}
		}()
	}

	for _, instr := range instruments {
		if ctx.Err() != nil {
			break
		}
		if !market.IsOpen(instr.Exchange, now) {
			s.logger.Debug("skipping closed exchange",
				"symbol", instr.Symbol, "mic", instr.Exchange.MIC)
			continue
		}
		jobs <- instr
	}
	close(jobs)
	wg.Wait()
}

// pollInstrument fetches one snapshot and feeds the resulting ticks
// through the evaluator. A fetch failure skips the instrument; the rest
// of the batch is unaffected.
func (s *Scheduler) pollInstrument(ctx context.Context, instr *models.Instrument) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	snap, err := s.quotes.Fetch(fctx, instr.Symbol)
	if err != nil {
		s.logger.Error("quote fetch failed, skipping instrument",
			"symbol", instr.Symbol, "error", err)
		return
	}

	for _, pv := range snap.Properties() {
		tick, err := s.ticks.Append(ctx, instr.ID, pv.Property, snap.Currency, pv.Value)
		if errors.Is(err, models.ErrInvalidValue) {
			// Unpopulated or non-positive property; nothing to record.
			continue
		}
		if err != nil {
			s.logger.Error("tick append failed",
				"symbol", instr.Symbol, "property", pv.Property, "error", err)
			continue
		}

		if s.feed != nil {
			s.feed.Publish(ctx, tick)
		}
		if err := s.evaluator.Evaluate(ctx, tick); err != nil {
			s.logger.Error("trigger evaluation failed",
				"symbol", instr.Symbol, "tick_id", tick.ID, "error", err)
		}
	}
}

// CheckIntervalsOnce runs one pass of the interval job: every active
// interval subscription whose exchange is open and whose period has
// elapsed reports the latest observation for its (instrument, property)
// and anchors on it. With no new observation since the last fire there
// is nothing to report, so re-running the job fires no duplicates.
func (s *Scheduler) CheckIntervalsOnce(ctx context.Context) {
	subs, err := s.subs.ActiveIntervals(ctx)
	if err != nil {
		s.logger.Error("interval job: loading subscriptions failed", "error", err)
		return
	}

	now := s.cfg.Now()
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		if err := s.checkInterval(ctx, sub, now); err != nil {
			s.logger.Error("interval check failed",
				"subscription_id", sub.ID, "error", err)
		}
	}
}

func (s *Scheduler) checkInterval(ctx context.Context, sub *models.Subscription, now time.Time) error {
	if sub.Instrument == nil {
		return fmt.Errorf("instrument %d not loaded", sub.InstrumentID)
	}
	if !market.IsOpen(sub.Instrument.Exchange, now) {
		return nil
	}

	// A subscription that never fired is due immediately.
	if sub.AnchorTick != nil && now.Sub(sub.AnchorTick.CreatedAt) < sub.Interval {
		return nil
	}

	latest, err := s.ticks.LatestFor(ctx, sub.InstrumentID, sub.Property)
	if err != nil {
		return err
	}
	if latest == nil {
		s.logger.Warn("interval elapsed but no observation to report",
			"subscription_id", sub.ID,
			"instrument_id", sub.InstrumentID,
			"property", sub.Property)
		return nil
	}
	if latest.ID == sub.AnchorTickID {
		// Nothing new since the last fire.
		return nil
	}

	advanced, err := s.subs.CompareAndSetAnchor(ctx, sub.ID, sub.AnchorTickID, latest.ID)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	s.logger.Info("interval subscription fired",
		"subscription_id", sub.ID,
		"instrument_id", sub.InstrumentID,
		"property", sub.Property,
		"value", latest.Value)
	// The anchor is already advanced; delivery runs off the job's path.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.dispatcher.Send(ctx, sub)
	}()
	return nil
}
