package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/finotif/finotif/internal/models"
)

const yahooModules = "financialData,summaryDetail,quoteType,summaryProfile,price"

// Yahoo fetches quote snapshots from the Yahoo Finance quoteSummary API.
// Requests are rate-limited so a large poll batch cannot hammer the
// upstream; each call carries the caller's context deadline.
type Yahoo struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewYahoo creates a Yahoo provider. baseURL is the API root, e.g.
// "https://query2.finance.yahoo.com". requestsPerSecond bounds the
// sustained request rate across all instruments.
func NewYahoo(baseURL string, requestTimeout time.Duration, requestsPerSecond float64, logger *slog.Logger) *Yahoo {
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 5),
		logger:  logger,
	}
}

// quoteSummary mirrors the slice of the Yahoo response the engine needs.
// Numeric fields arrive as {raw, fmt} objects.
type quoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData *struct {
				CurrentPrice yahooNumber `json:"currentPrice"`
			} `json:"financialData"`
			SummaryDetail *struct {
				Ask     yahooNumber `json:"ask"`
				Bid     yahooNumber `json:"bid"`
				AskSize yahooNumber `json:"askSize"`
				BidSize yahooNumber `json:"bidSize"`
			} `json:"summaryDetail"`
			QuoteType *struct {
				Symbol    string `json:"symbol"`
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
			} `json:"quoteType"`
			SummaryProfile *struct {
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"summaryProfile"`
			Price *struct {
				ExchangeName string `json:"exchangeName"`
				Currency     string `json:"currency"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

type yahooNumber struct {
	Raw float64 `json:"raw"`
}

// Fetch requests a snapshot for symbol. Any transport, HTTP or parse
// failure, including a partial payload, yields models.ErrFetchFailed;
// the snapshot is all-or-nothing.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = models.NormalizeSymbol(symbol)

	if err := y.limiter.Wait(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}

	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(symbol), yahooModules)
	y.logger.Debug("requesting quote", "symbol", symbol, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "finotif/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("%w: unexpected status %d for %s",
			models.ErrFetchFailed, resp.StatusCode, symbol)
	}

	var payload quoteSummary
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode: %v", models.ErrFetchFailed, err)
	}

	return snapshotFrom(symbol, payload)
}

// snapshotFrom maps the decoded payload to a Snapshot, failing when a
// required module is missing.
func snapshotFrom(symbol string, payload quoteSummary) (Snapshot, error) {
	results := payload.QuoteSummary.Result
	if len(results) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty result for %s", models.ErrFetchFailed, symbol)
	}
	r := results[0]

	if r.FinancialData == nil || r.SummaryDetail == nil || r.QuoteType == nil ||
		r.SummaryProfile == nil || r.Price == nil {
		return Snapshot{}, fmt.Errorf("%w: partial payload for %s", models.ErrFetchFailed, symbol)
	}
	if r.Price.Currency == "" {
		return Snapshot{}, fmt.Errorf("%w: missing currency for %s", models.ErrFetchFailed, symbol)
	}

	return Snapshot{
		Symbol:       symbol,
		Price:        r.FinancialData.CurrentPrice.Raw,
		Ask:          r.SummaryDetail.Ask.Raw,
		Bid:          r.SummaryDetail.Bid.Raw,
		AskSize:      r.SummaryDetail.AskSize.Raw,
		BidSize:      r.SummaryDetail.BidSize.Raw,
		Currency:     strings.ToUpper(r.Price.Currency),
		Name:         r.QuoteType.LongName,
		ShortName:    r.QuoteType.ShortName,
		Description:  r.SummaryProfile.LongBusinessSummary,
		ExchangeName: strings.ToUpper(r.Price.ExchangeName),
	}, nil
}
