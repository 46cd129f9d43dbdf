package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

type WSQuoteStreamTestSuite struct {
	suite.Suite
}

func TestWSQuoteStreamSuite(t *testing.T) {
	suite.Run(t, new(WSQuoteStreamTestSuite))
}

// newQuoteServer upgrades every connection and writes msgs, then holds the socket open.
func newQuoteServer(msgs ...string) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func (s *WSQuoteStreamTestSuite) TestReceivesTicks() {
	server := newQuoteServer(
		`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","p":"65000.50"}}`,
		`{"stream":"btcusdt@bookTicker","data":{"u":1,"b":"64999.00","a":"65001.00"}}`,
	)
	defer server.Close()

	stream, err := DialQuoteStream(context.Background(), wsURL(server), ParseBinanceStreamMessage)
	s.Require().NoError(err)

	defer stream.Close()

	s.Eventually(func() bool {
		tick, ok := stream.Latest()

		return ok && tick.Last == 65000.50 && tick.Ask == 65001.00
	}, 2*time.Second, 10*time.Millisecond)

	tick, _ := stream.Latest()
	s.Equal(64999.00, tick.Bid)
}

func (s *WSQuoteStreamTestSuite) TestFirstDialMustSucceed() {
	_, err := DialQuoteStream(context.Background(), "ws://127.0.0.1:1/none", ParseBinanceStreamMessage)
	s.Error(err)
}

func (s *WSQuoteStreamTestSuite) TestCloseStopsPumps() {
	server := newQuoteServer()
	defer server.Close()

	stream, err := DialQuoteStream(context.Background(), wsURL(server), ParseBinanceStreamMessage,
		WithPongTimeout(time.Second), WithRedialInterval(10*time.Millisecond))
	s.Require().NoError(err)

	done := make(chan struct{})

	go func() {
		_ = stream.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("close did not return")
	}

	_, ok := stream.Latest()
	s.False(ok)
}

func (s *WSQuoteStreamTestSuite) TestParseBinanceStreamMessage() {
	prev := types.Tick{Last: 1, Close: 0, Ask: 0, Bid: 0, Time: time.Time{}}

	next, ok := ParseBinanceStreamMessage([]byte(`{"e":"trade","p":"2.5"}`), prev)
	s.True(ok)
	s.Equal(2.5, next.Last)

	next, ok = ParseBinanceStreamMessage([]byte(`{"e":"24hrTicker","c":"3.0","b":"2.9","a":"3.1"}`), next)
	s.True(ok)
	s.Equal(3.0, next.Close)
	s.Equal(2.5, next.Last)

	_, ok = ParseBinanceStreamMessage([]byte(`{"e":"trade","p":"0"}`), next)
	s.False(ok, "non-positive prices are ignored")

	agg := `{"e":"aggTrade","E":1700000000000,"s":"BTCUSDT","a":26129,"p":"4.5","q":"10","T":1700000000000,"m":true}`
	next, ok = ParseBinanceStreamMessage([]byte(agg), next)
	s.True(ok)
	s.Equal(4.5, next.Last)

	book := `{"u":400900217,"s":"BNBUSDT","b":"25.35","B":"31.21","a":"25.36","A":"40.66"}`
	next, ok = ParseBinanceStreamMessage([]byte(book), next)
	s.True(ok)
	s.Equal(25.35, next.Bid)
	s.Equal(25.36, next.Ask)

	_, ok = ParseBinanceStreamMessage([]byte(`not json`), next)
	s.False(ok)
}
