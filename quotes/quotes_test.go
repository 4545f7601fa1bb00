package quotes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AAPL", Normalize("  aapl "))
	assert.Equal(t, "MSFT", Normalize("MSFT"))
	assert.Equal(t, "", Normalize("   "))
}

func TestFetchParsesGlobalQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"Global Quote": {
			"01. symbol": "AAPL",
			"05. price": "189.3000",
			"09. change": "1.2500",
			"10. change percent": "0.6646%"
		}}`)
	}))
	defer srv.Close()

	av := NewAlphaVantageURL("demo", srv.URL, nil, testLogger())
	q, err := av.Fetch(context.Background(), " aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 189.30, q.Price, 1e-9)
	assert.InDelta(t, 1.25, q.Change, 1e-9)
	assert.InDelta(t, 0.6646, q.ChangePercent, 1e-9)
}

func TestFetchUnknownSymbol(t *testing.T) {
	// Alpha Vantage answers unknown symbols with an empty Global Quote.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote": {}}`)
	}))
	defer srv.Close()

	av := NewAlphaVantageURL("demo", srv.URL, nil, testLogger())
	_, err := av.Fetch(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestFetchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	av := NewAlphaVantageURL("demo", srv.URL, nil, testLogger())
	_, err := av.Fetch(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	av := NewAlphaVantageURL("demo", srv.URL, nil, testLogger())
	_, err := av.Fetch(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestFetchEmptySymbol(t *testing.T) {
	av := NewAlphaVantageURL("demo", "http://127.0.0.1:0", nil, testLogger())
	_, err := av.Fetch(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestFetchTimesOutAsUnavailable(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	av := NewAlphaVantageURL("demo", srv.URL, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := av.Fetch(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}
