package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/wsconn"
)

const (
	tracerName = "binance"
	meterName  = "binance"

	BaseWSURL   = "wss://stream.binance.com:9443"
	BaseWSURLUS = "wss://stream.binance.us:9443"
)

// Book is the latest top of book for one market.
type Book struct {
	Symbol    string
	Bid       decimal.Decimal
	BidQty    decimal.Decimal
	Ask       decimal.Decimal
	AskQty    decimal.Decimal
	UpdatedAt time.Time
}

// Mid returns the bid/ask midpoint.
func (b Book) Mid() decimal.Decimal {
	return b.Bid.Add(b.Ask).Div(decimal.NewFromInt(2))
}

// DepthUSD returns the quote value resting at the top level on both sides.
func (b Book) DepthUSD() decimal.Decimal {
	return b.Bid.Mul(b.BidQty).Add(b.Ask.Mul(b.AskQty))
}

func bookFromTicker(t BookTicker, at time.Time) Book {
	return Book{
		Symbol:    strings.ToUpper(t.Symbol),
		Bid:       t.BidPrice,
		BidQty:    t.BidQty,
		Ask:       t.AskPrice,
		AskQty:    t.AskQty,
		UpdatedAt: at,
	}
}

type streamMetrics struct {
	messages    metric.Int64Counter
	parseErrors metric.Int64Counter
}

// Stream keeps the latest bookTicker per market from a combined stream.
type Stream struct {
	conn *wsconn.Client
	log  logger.LoggerInterface
	now  func() time.Time

	mu    sync.RWMutex
	books map[string]Book

	metrics *streamMetrics
}

// NewStream prepares a combined bookTicker subscription for markets. It does
// not dial.
func NewStream(baseURL string, markets []string, log logger.LoggerInterface) (*Stream, error) {
	if len(markets) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("binance stream: no markets"))
	}
	if baseURL == "" {
		baseURL = BaseWSURL
	}

	streams := make([]string, len(markets))
	for i, m := range markets {
		streams[i] = BookTickerStream(m)
	}
	url := strings.TrimSuffix(baseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")

	conn, err := wsconn.New(wsconn.DefaultConfig(url, "binance"), wsconn.WithLogger(log))
	if err != nil {
		return nil, err
	}

	s := &Stream{
		conn:  conn,
		log:   log,
		now:   time.Now,
		books: make(map[string]Book, len(markets)),
	}
	s.initMetrics()
	conn.OnMessage(s.handle)
	return s, nil
}

func (s *Stream) initMetrics() {
	meter := otel.Meter(meterName)
	s.metrics = &streamMetrics{}

	s.metrics.messages, _ = meter.Int64Counter(
		"binance_stream_messages_total",
		metric.WithDescription("bookTicker updates received"),
	)
	s.metrics.parseErrors, _ = meter.Int64Counter(
		"binance_stream_parse_errors_total",
		metric.WithDescription("Stream messages that could not be decoded"),
	)
}

func (s *Stream) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) IsConnected() bool {
	return s.conn.IsConnected()
}

// Book returns the last update for market, if any arrived.
func (s *Stream) Book(market string) (Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[strings.ToUpper(market)]
	return b, ok
}

func (s *Stream) handle(ctx context.Context, msg []byte) {
	payload := msg
	var env StreamEvent
	if err := json.Unmarshal(msg, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	var ev BookTickerEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Symbol == "" {
		s.metrics.parseErrors.Add(ctx, 1)
		if s.log != nil {
			s.log.Debug(ctx, "ignoring binance stream message", "error", err, "size", len(msg))
		}
		return
	}

	book := Book{
		Symbol:    strings.ToUpper(ev.Symbol),
		Bid:       ev.BidPrice,
		BidQty:    ev.BidQty,
		Ask:       ev.AskPrice,
		AskQty:    ev.AskQty,
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	s.books[book.Symbol] = book
	s.mu.Unlock()

	s.metrics.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", book.Symbol)))
}
