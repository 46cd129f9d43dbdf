package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// TickParser folds one websocket message into the previous tick.
// It returns false when the message carries no price update.
type TickParser func(msg []byte, prev types.Tick) (types.Tick, bool)

// WSQuoteStream is a reconnecting websocket subscription that keeps the latest tick.
type WSQuoteStream struct {
	url    string
	parser TickParser
	dialer websocket.Dialer
	header http.Header

	pongWait     time.Duration
	pingInterval time.Duration
	writeWait    time.Duration
	redialEvery  time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	latest types.Tick
	seen   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WSOption configures a WSQuoteStream.
type WSOption func(*WSQuoteStream)

// WithWSHeader adds HTTP headers to the handshake.
func WithWSHeader(h http.Header) WSOption {
	return func(s *WSQuoteStream) { s.header = h }
}

// WithPongTimeout sets the read deadline extended by every pong; pings go out at 90% of it.
func WithPongTimeout(d time.Duration) WSOption {
	return func(s *WSQuoteStream) {
		s.pongWait = d
		s.pingInterval = d * 9 / 10
	}
}

// WithRedialInterval sets the wait between reconnect attempts.
func WithRedialInterval(d time.Duration) WSOption {
	return func(s *WSQuoteStream) { s.redialEvery = d }
}

// DialQuoteStream connects to url and starts pumping messages through parser.
// The first dial must succeed; later drops are redialed until Close or ctx is done.
func DialQuoteStream(ctx context.Context, url string, parser TickParser, opts ...WSOption) (*WSQuoteStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	//nolint:exhaustruct // connection state is filled by dial
	s := &WSQuoteStream{
		url:    url,
		parser: parser,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		header:       make(http.Header),
		pongWait:     30 * time.Second,
		pingInterval: 27 * time.Second,
		writeWait:    10 * time.Second,
		redialEvery:  2 * time.Second,
		ctx:          streamCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.dial(); err != nil {
		cancel()

		return nil, errors.Wrapf(errors.ErrCodeStreamFailed, err, "failed to dial quote stream %s", url)
	}

	go s.run()

	return s, nil
}

// Latest returns the most recent tick.
func (s *WSQuoteStream) Latest() (types.Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest, s.seen
}

// Close stops the pumps and waits for them to exit.
func (s *WSQuoteStream) Close() error {
	s.cancel()

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()

	<-s.done

	return nil
}

func (s *WSQuoteStream) dial() error {
	conn, resp, err := s.dialer.DialContext(s.ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	return nil
}

func (s *WSQuoteStream) run() {
	defer close(s.done)

	for {
		s.pump()

		ticker := time.NewTicker(s.redialEvery)

	redial:
		for {
			select {
			case <-s.ctx.Done():
				ticker.Stop()

				return
			case <-ticker.C:
				if err := s.dial(); err == nil {
					break redial
				}
			}
		}

		ticker.Stop()
	}
}

// pump runs the read and ping loops until either fails.
func (s *WSQuoteStream) pump() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	stop := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))

		s.mu.Lock()
		if tick, ok := s.parser(msg, s.latest); ok {
			s.latest = tick
			s.seen = true
		}
		s.mu.Unlock()
	}

	close(stop)
	_ = conn.Close()
	wg.Wait()
}

type binanceStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// ParseBinanceStreamMessage understands combined-stream envelopes and raw trade,
// aggTrade, bookTicker and 24hr ticker payloads.
//
// Binance payloads use keys that differ only by case ("b" bid price, "B" bid quantity),
// so fields are looked up by exact key instead of struct decoding.
func ParseBinanceStreamMessage(msg []byte, prev types.Tick) (types.Tick, bool) {
	var envelope binanceStreamEnvelope
	if err := json.Unmarshal(msg, &envelope); err == nil && len(envelope.Data) > 0 {
		msg = envelope.Data
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(msg, &payload); err != nil {
		return prev, false
	}

	field := func(key string) string {
		var v string
		if raw, ok := payload[key]; ok {
			_ = json.Unmarshal(raw, &v)
		}

		return v
	}

	next := prev
	updated := false

	set := func(dst *float64, raw string) {
		if raw == "" {
			return
		}

		if v, err := strconv.ParseFloat(raw, 64); err == nil && types.IsUsablePrice(v) {
			*dst = v
			updated = true
		}
	}

	event := field("e")

	switch {
	case event == "trade" || event == "aggTrade":
		set(&next.Last, field("p"))
	case strings.HasSuffix(event, "Ticker") || event == "":
		// bookTicker payloads have no event type
		set(&next.Bid, field("b"))
		set(&next.Ask, field("a"))
		set(&next.Close, field("c"))
	}

	if updated {
		next.Time = time.Now()
	}

	return next, updated
}

var _ QuoteStream = (*WSQuoteStream)(nil)
