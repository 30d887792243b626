package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/service"
	"github.com/finotif/finotif/internal/storage"
)

type fakeQuotes struct {
	snapshots map[string]provider.Snapshot
}

func (p *fakeQuotes) Fetch(_ context.Context, symbol string) (provider.Snapshot, error) {
	snap, ok := p.snapshots[symbol]
	if !ok {
		return provider.Snapshot{}, fmt.Errorf("%w: %s", models.ErrFetchFailed, symbol)
	}
	return snap, nil
}

func newTestRouter(t *testing.T) (*storage.Memory, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storage.NewMemory()
	mem.AddCurrency("USD")
	if err := mem.Exchanges().Create(context.Background(), &models.Exchange{MIC: "XNAS", Name: "NASDAQ"}); err != nil {
		t.Fatalf("create exchange: %v", err)
	}

	quotes := &fakeQuotes{snapshots: map[string]provider.Snapshot{
		"AAPL": {Symbol: "AAPL", Price: 178.25, Currency: "USD", Name: "Apple Inc."},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subscriptions := service.NewSubscriptions(
		mem.Subscriptions(), mem.Instruments(), mem.Exchanges(), quotes, logger)

	handler := NewHandler(subscriptions, mem.Instruments(), mem.Ticks(), mem.Notes())
	return mem, NewRouter(&Config{Handler: handler})
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const stepBody = `{
	"owner_id": 1,
	"symbol": "aapl",
	"mic": "XNAS",
	"property": "PRICE",
	"channel": "EMAIL",
	"title": "AAPL moved",
	"kind": "STEP",
	"threshold": 0.5
}`

func TestCreateSubscriptionEndpoint(t *testing.T) {
	_, router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/subscriptions", stepBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/subscriptions = %d, body %s", w.Code, w.Body)
	}

	// Same subscription again conflicts.
	w = doJSON(router, http.MethodPost, "/v1/subscriptions", stepBody)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate POST = %d, want 409", w.Code)
	}
}

func TestCreateSubscriptionValidation(t *testing.T) {
	_, router := newTestRouter(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{
			name: "unknown exchange",
			body: strings.Replace(stepBody, "XNAS", "XXXX", 1),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unresolvable symbol",
			body: strings.Replace(stepBody, "aapl", "NOPE", 1),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "zero threshold",
			body: strings.Replace(stepBody, `"threshold": 0.5`, `"threshold": 0`, 1),
			want: http.StatusBadRequest,
		},
		{
			name: "unknown channel",
			body: strings.Replace(stepBody, "EMAIL", "FAX", 1),
			want: http.StatusBadRequest,
		},
		{
			name: "malformed interval",
			body: strings.Replace(stepBody, `"kind": "STEP"`, `"kind": "INTERVAL", "interval": "soon"`, 1),
			want: http.StatusBadRequest,
		},
		{
			name: "missing title",
			body: strings.Replace(stepBody, `"title": "AAPL moved",`, "", 1),
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(router, http.MethodPost, "/v1/subscriptions", tc.body); w.Code != tc.want {
				t.Errorf("got %d, want %d (body %s)", w.Code, tc.want, w.Body)
			}
		})
	}
}

func TestDeactivateSubscriptionEndpoint(t *testing.T) {
	mem, router := newTestRouter(t)

	if w := doJSON(router, http.MethodPost, "/v1/subscriptions", stepBody); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w := doJSON(router, http.MethodDelete, "/v1/subscriptions/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", w.Code)
	}

	instruments, _ := mem.Subscriptions().InstrumentsWithActiveSubscriptions(context.Background())
	if len(instruments) != 0 {
		t.Errorf("active instruments after deactivate = %d, want 0", len(instruments))
	}

	if w := doJSON(router, http.MethodDelete, "/v1/subscriptions/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("DELETE with bad id = %d, want 400", w.Code)
	}
}

func TestLatestTickEndpoint(t *testing.T) {
	mem, router := newTestRouter(t)
	ctx := context.Background()

	if w := doJSON(router, http.MethodPost, "/v1/subscriptions", stepBody); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	instr, _ := mem.Instruments().BySymbol(ctx, "AAPL")

	w := doJSON(router, http.MethodGet, "/v1/instruments/AAPL/ticks/latest?property=PRICE", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("latest with no ticks = %d, want 404", w.Code)
	}

	if _, err := mem.Ticks().Append(ctx, instr.ID, models.PropertyPrice, "USD", 178.25); err != nil {
		t.Fatalf("append: %v", err)
	}
	w = doJSON(router, http.MethodGet, "/v1/instruments/AAPL/ticks/latest?property=PRICE", "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest = %d, body %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "178.25") {
		t.Errorf("latest body = %s, want value 178.25", w.Body)
	}

	w = doJSON(router, http.MethodGet, "/v1/instruments/AAPL/ticks/latest?property=MOOD", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("latest with unknown property = %d, want 400", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/v1/instruments/MSFT/ticks/latest?property=PRICE", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("latest for unknown instrument = %d, want 404", w.Code)
	}
}

func TestNoteEndpoints(t *testing.T) {
	_, router := newTestRouter(t)

	if w := doJSON(router, http.MethodPost, "/v1/subscriptions", stepBody); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	noteBody := `{"user_id": 1, "title": "earnings", "content": "watch the call on Thursday"}`
	if w := doJSON(router, http.MethodPost, "/v1/instruments/AAPL/notes", noteBody); w.Code != http.StatusCreated {
		t.Fatalf("POST note = %d, body %s", w.Code, w.Body)
	}

	w := doJSON(router, http.MethodGet, "/v1/instruments/AAPL/notes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET notes = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "earnings") {
		t.Errorf("notes body = %s, want the created note", w.Body)
	}
}
