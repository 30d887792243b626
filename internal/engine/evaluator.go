// Package engine contains the decision core of the alerting system: the
// trigger evaluator and the scheduler driving the poll and interval jobs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/storage"
)

// Dispatcher hands a fired subscription off to its delivery channel.
// The call is fire-and-forget relative to the evaluation: trigger state
// is already advanced when Send runs, so a failed delivery never causes
// the same crossing to fire again.
type Dispatcher interface {
	Send(ctx context.Context, sub *models.Subscription)
}

// Evaluator decides which step subscriptions must fire for a newly
// appended tick and advances their baselines. Dispatch happens on its
// own goroutine so a slow delivery transport never stalls evaluation.
type Evaluator struct {
	subs       storage.SubscriptionStore
	dispatcher Dispatcher
	logger     *slog.Logger
	inflight   sync.WaitGroup
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(subs storage.SubscriptionStore, dispatcher Dispatcher, logger *slog.Logger) *Evaluator {
	return &Evaluator{subs: subs, dispatcher: dispatcher, logger: logger}
}

// Evaluate runs the step-trigger decision for one new tick against every
// active step subscription watching its (instrument, property).
//
// Per subscription:
//   - no baseline yet: the tick becomes the baseline, nothing fires;
//   - the tick moved at least Threshold away from the baseline in either
//     direction: advance the baseline to the tick and dispatch;
//   - otherwise: leave the baseline untouched, so oscillations inside
//     the band can still accumulate into a real crossing later.
//
// The baseline advance is a compare-and-set against the baseline the
// decision was made from; when two evaluations race on one subscription,
// exactly one swap wins and only the winner dispatches.
func (e *Evaluator) Evaluate(ctx context.Context, tick *models.Tick) error {
	subs, err := e.subs.ActiveSteps(ctx, tick.InstrumentID, tick.Property)
	if err != nil {
		return fmt.Errorf("load step subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := e.evaluateOne(ctx, sub, tick); err != nil {
			// One subscription's failure must not starve the rest.
			e.logger.Error("step evaluation failed",
				"subscription_id", sub.ID, "tick_id", tick.ID, "error", err)
		}
	}
	return nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, sub *models.Subscription, tick *models.Tick) error {
	if sub.ReferenceTickID == 0 {
		// First relevant observation only establishes the baseline.
		if _, err := e.subs.CompareAndSetReference(ctx, sub.ID, 0, tick.ID); err != nil {
			return err
		}
		e.logger.Debug("baseline established",
			"subscription_id", sub.ID, "tick_id", tick.ID, "value", tick.Value)
		return nil
	}

	ref := sub.ReferenceTick
	if ref == nil {
		return fmt.Errorf("reference tick %d not loaded", sub.ReferenceTickID)
	}

	shouldFire := tick.Value >= ref.Value+sub.Threshold ||
		tick.Value <= ref.Value-sub.Threshold
	if !shouldFire {
		return nil
	}

	advanced, err := e.subs.CompareAndSetReference(ctx, sub.ID, ref.ID, tick.ID)
	if err != nil {
		return err
	}
	if !advanced {
		// A concurrent evaluation already advanced the baseline; this
		// crossing has been reported.
		e.logger.Debug("lost baseline race, skipping",
			"subscription_id", sub.ID, "tick_id", tick.ID)
		return nil
	}

	e.logger.Info("step subscription fired",
		"subscription_id", sub.ID,
		"instrument_id", tick.InstrumentID,
		"property", tick.Property,
		"baseline", ref.Value,
		"value", tick.Value,
		"threshold", sub.Threshold)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.dispatcher.Send(ctx, sub)
	}()
	return nil
}

// Wait blocks until all in-flight dispatch hand-offs have completed.
// Called on shutdown so fired notifications are not abandoned mid-send.
func (e *Evaluator) Wait() {
	e.inflight.Wait()
}
