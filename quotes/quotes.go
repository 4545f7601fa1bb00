package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrQuoteUnavailable covers every way a live price can fail to arrive:
// provider down, request timeout, unknown symbol, malformed payload. Callers
// decide the fallback policy; trades fail, valuation falls back to cost basis.
var ErrQuoteUnavailable = errors.New("quote unavailable")

const (
	defaultBaseURL = "https://www.alphavantage.co"
	cacheTTL       = 5 * time.Minute
	fetchTimeout   = 5 * time.Second
)

type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Fetcher is the quote gateway contract. Implementations must normalize the
// symbol and return ErrQuoteUnavailable (wrapped) on any provider failure.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// Normalize uppercases and trims a ticker symbol before lookup or persistence.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// AlphaVantage fetches live quotes from the Alpha Vantage GLOBAL_QUOTE
// endpoint with a redis read-through cache. The redis client may be nil, in
// which case every fetch goes to the provider.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	rdb     *redis.Client
	log     *slog.Logger
}

func NewAlphaVantage(apiKey string, rdb *redis.Client, log *slog.Logger) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: fetchTimeout},
		rdb:     rdb,
		log:     log,
	}
}

// NewAlphaVantageURL is like NewAlphaVantage but points at a custom base URL.
// Used by tests to stand in a local server for the provider.
func NewAlphaVantageURL(apiKey, baseURL string, rdb *redis.Client, log *slog.Logger) *AlphaVantage {
	av := NewAlphaVantage(apiKey, rdb, log)
	av.baseURL = baseURL
	return av
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:quote", symbol)
}

func (av *AlphaVantage) Fetch(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return Quote{}, fmt.Errorf("empty symbol: %w", ErrQuoteUnavailable)
	}

	if av.rdb != nil {
		cached, err := av.rdb.Get(ctx, cacheKey(symbol)).Result()
		if err == nil {
			var q Quote
			if err := json.Unmarshal([]byte(cached), &q); err == nil {
				return q, nil
			}
		}
	}

	q, err := av.fetchLive(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	if av.rdb != nil {
		payload, _ := json.Marshal(q)
		if err := av.rdb.Set(ctx, cacheKey(symbol), payload, cacheTTL).Err(); err != nil {
			av.log.Warn("failed to cache quote", "symbol", symbol, "error", err)
		}
	}
	return q, nil
}

func (av *AlphaVantage) fetchLive(ctx context.Context, symbol string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		av.baseURL, url.QueryEscape(symbol), url.QueryEscape(av.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}

	resp, err := av.client.Do(req)
	if err != nil {
		av.log.Warn("quote provider request failed", "symbol", symbol, "error", err)
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		av.log.Warn("quote provider returned non-200", "symbol", symbol, "status", resp.StatusCode)
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}

	var result globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}
	if result.GlobalQuote.Price == "" {
		// Alpha Vantage answers unknown symbols with an empty Global Quote.
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil || price <= 0 {
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}

	q := Quote{
		Symbol: symbol,
		// GLOBAL_QUOTE carries no company name; the symbol stands in.
		Name:  symbol,
		Price: price,
	}
	if c, err := strconv.ParseFloat(result.GlobalQuote.Change, 64); err == nil {
		q.Change = c
	}
	if cp, err := strconv.ParseFloat(strings.TrimSuffix(result.GlobalQuote.ChangePercent, "%"), 64); err == nil {
		q.ChangePercent = cp
	}
	return q, nil
}
