package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/storage"
)

type fakeQuotes struct {
	snapshots map[string]provider.Snapshot
	calls     int
}

func (p *fakeQuotes) Fetch(_ context.Context, symbol string) (provider.Snapshot, error) {
	p.calls++
	snap, ok := p.snapshots[symbol]
	if !ok {
		return provider.Snapshot{}, fmt.Errorf("%w: %s", models.ErrFetchFailed, symbol)
	}
	return snap, nil
}

func newServiceFixture(t *testing.T) (*storage.Memory, *fakeQuotes, *Subscriptions) {
	t.Helper()

	mem := storage.NewMemory()
	ex := &models.Exchange{MIC: "XNAS", Name: "NASDAQ"}
	if err := mem.Exchanges().Create(context.Background(), ex); err != nil {
		t.Fatalf("create exchange: %v", err)
	}

	quotes := &fakeQuotes{snapshots: map[string]provider.Snapshot{
		"AAPL": {
			Symbol:    "AAPL",
			Price:     178.25,
			Currency:  "USD",
			Name:      "Apple Inc.",
			ShortName: "Apple",
		},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSubscriptions(mem.Subscriptions(), mem.Instruments(), mem.Exchanges(), quotes, logger)
	return mem, quotes, svc
}

func stepRequest() CreateRequest {
	return CreateRequest{
		OwnerID:   1,
		Symbol:    "aapl",
		MIC:       "xnas",
		Property:  models.PropertyPrice,
		Channel:   models.ChannelEmail,
		Title:     "AAPL moved",
		Active:    true,
		Kind:      models.KindStep,
		Threshold: 0.5,
	}
}

func TestCreateLazilyCreatesInstrument(t *testing.T) {
	mem, quotes, svc := newServiceFixture(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, stepRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.ID == 0 || !sub.Active {
		t.Errorf("unexpected subscription: %+v", sub)
	}

	instr, err := mem.Instruments().BySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("BySymbol: %v", err)
	}
	if instr == nil || instr.Name != "Apple Inc." {
		t.Fatalf("instrument not created from provider metadata: %+v", instr)
	}
	if instr.Exchange.MIC != "XNAS" {
		t.Errorf("instrument exchange = %q, want XNAS", instr.Exchange.MIC)
	}
	if quotes.calls != 1 {
		t.Errorf("provider called %d times, want 1", quotes.calls)
	}

	// Second subscription for a known symbol skips the provider.
	req := stepRequest()
	req.Threshold = 1.0
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if quotes.calls != 1 {
		t.Errorf("provider called %d times for known symbol, want still 1", quotes.calls)
	}
}

func TestCreateRejectsUnknownExchange(t *testing.T) {
	_, _, svc := newServiceFixture(t)

	req := stepRequest()
	req.Symbol = "TSLA"
	req.MIC = "XXXX"

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, models.ErrUnknownExchange) {
		t.Errorf("Create error = %v, want ErrUnknownExchange", err)
	}
}

func TestCreateRejectsUnresolvableSymbol(t *testing.T) {
	_, _, svc := newServiceFixture(t)

	req := stepRequest()
	req.Symbol = "NOPE"

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, models.ErrUnknownInstrument) {
		t.Errorf("Create error = %v, want ErrUnknownInstrument", err)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	_, _, svc := newServiceFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, stepRequest()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, stepRequest())
	if !errors.Is(err, models.ErrDuplicateSubscription) {
		t.Errorf("duplicate Create error = %v, want ErrDuplicateSubscription", err)
	}
}

func TestCreateValidatesThresholdAndInterval(t *testing.T) {
	_, _, svc := newServiceFixture(t)
	ctx := context.Background()

	req := stepRequest()
	req.Threshold = 0
	if _, err := svc.Create(ctx, req); !errors.Is(err, models.ErrInvalidThreshold) {
		t.Errorf("Create error = %v, want ErrInvalidThreshold", err)
	}

	ireq := stepRequest()
	ireq.Kind = models.KindInterval
	ireq.Threshold = 0
	ireq.Interval = -time.Minute
	if _, err := svc.Create(ctx, ireq); !errors.Is(err, models.ErrInvalidInterval) {
		t.Errorf("Create error = %v, want ErrInvalidInterval", err)
	}
}

func TestCreateValidatesPropertyAndChannel(t *testing.T) {
	_, _, svc := newServiceFixture(t)
	ctx := context.Background()

	req := stepRequest()
	req.Property = models.Property("SENTIMENT")
	if _, err := svc.Create(ctx, req); !errors.Is(err, models.ErrInvalidSubscription) {
		t.Errorf("Create with unknown property: %v, want ErrInvalidSubscription", err)
	}

	req = stepRequest()
	req.Channel = models.Channel("FAX")
	if _, err := svc.Create(ctx, req); !errors.Is(err, models.ErrInvalidSubscription) {
		t.Errorf("Create with unknown channel: %v, want ErrInvalidSubscription", err)
	}
}

func TestDeactivate(t *testing.T) {
	mem, _, svc := newServiceFixture(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, stepRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Deactivate(ctx, sub.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	instruments, _ := mem.Subscriptions().InstrumentsWithActiveSubscriptions(ctx)
	if len(instruments) != 0 {
		t.Errorf("instruments with active subscriptions = %d, want 0", len(instruments))
	}
}
