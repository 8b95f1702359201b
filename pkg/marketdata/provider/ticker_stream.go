package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// DefaultBinanceStreamURL is the public combined-stream endpoint.
const DefaultBinanceStreamURL = "wss://stream.binance.com:9443"

type tickerQuote struct {
	price float64
	at    time.Time
}

type miniTickerEnvelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol    string `json:"s"`
		Close     string `json:"c"`
		EventTime int64  `json:"E"`
	} `json:"data"`
}

// BinanceTickerStream keeps the latest mini-ticker close of each subscribed pair
// in memory. Price history and cache misses are delegated to the fallback provider.
type BinanceTickerStream struct {
	baseURL  string
	dialer   *websocket.Dialer
	fallback marketdata.PriceSeriesProvider
	maxAge   time.Duration
	log      *logger.Logger

	mu     sync.RWMutex
	quotes map[string]tickerQuote
}

// NewBinanceTickerStream creates a stream. maxAge bounds how old a cached quote may be.
func NewBinanceTickerStream(baseURL string, fallback marketdata.PriceSeriesProvider, maxAge time.Duration, log *logger.Logger) *BinanceTickerStream {
	if baseURL == "" {
		baseURL = DefaultBinanceStreamURL
	}

	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}

	return &BinanceTickerStream{
		baseURL:  baseURL,
		dialer:   websocket.DefaultDialer,
		fallback: fallback,
		maxAge:   maxAge,
		log:      log.Named("ticker_stream"),
		mu:       sync.RWMutex{},
		quotes:   make(map[string]tickerQuote),
	}
}

// Run subscribes to the mini tickers of pairs and updates the cache until ctx is done
// or the connection drops. Callers reconnect by calling Run again.
func (s *BinanceTickerStream) Run(ctx context.Context, pairs []string) error {
	if len(pairs) == 0 {
		return errors.New(errors.ErrCodeMissingParameter, "no pairs to subscribe")
	}

	streams := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		// Binance requires lowercase symbols for websocket streams
		streams = append(streams, strings.ToLower(pair)+"@miniTicker")
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stream url", err)
	}

	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamFailed, "dial binance ws", err)
	}

	var once sync.Once

	closeConn := func() {
		once.Do(func() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}
	defer closeConn()

	go func() {
		<-ctx.Done()
		closeConn()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}

			return errors.Wrap(errors.ErrCodeStreamFailed, "binance ws read", err)
		}

		if err := s.handleMessage(msg); err != nil {
			s.log.Warn("skipping ticker message", zap.Error(err))
		}
	}
}

func (s *BinanceTickerStream) handleMessage(msg []byte) error {
	var envelope miniTickerEnvelope
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return err
	}

	if envelope.Data.Symbol == "" {
		return nil
	}

	price, err := strconv.ParseFloat(envelope.Data.Close, 64)
	if err != nil {
		return err
	}

	if price <= 0 {
		return nil
	}

	at := time.UnixMilli(envelope.Data.EventTime).UTC()
	if envelope.Data.EventTime == 0 {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	s.quotes[strings.ToUpper(envelope.Data.Symbol)] = tickerQuote{price: price, at: at}
	s.mu.Unlock()

	return nil
}

// GetPriceHistory delegates to the fallback provider.
func (s *BinanceTickerStream) GetPriceHistory(ctx context.Context, pair string, from, to time.Time) ([]types.PricePoint, error) {
	if s.fallback == nil {
		return nil, errors.New(errors.ErrCodePriceFetchFailed, "ticker stream has no history provider")
	}

	return s.fallback.GetPriceHistory(ctx, pair, from, to)
}

// GetCurrentPrice serves a fresh cached quote, falling back to the REST provider.
func (s *BinanceTickerStream) GetCurrentPrice(ctx context.Context, pair string) (optional.Option[float64], error) {
	s.mu.RLock()
	quote, ok := s.quotes[strings.ToUpper(pair)]
	s.mu.RUnlock()

	if ok && time.Since(quote.at) <= s.maxAge {
		return optional.Some(quote.price), nil
	}

	if s.fallback == nil {
		return optional.None[float64](), nil
	}

	return s.fallback.GetCurrentPrice(ctx, pair)
}
