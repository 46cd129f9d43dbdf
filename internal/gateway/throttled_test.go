package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type ThrottledTestSuite struct {
	suite.Suite
}

func TestThrottledSuite(t *testing.T) {
	suite.Run(t, new(ThrottledTestSuite))
}

func (s *ThrottledTestSuite) TestBurstPassesThrough() {
	paper := NewPaperGateway()
	gw := NewThrottled(paper, 60, 3)

	_, err := gw.Connect(context.Background(), 1)
	s.Require().NoError(err)
	s.True(gw.IsConnected())

	paper.SetPrice(10)

	for range 3 {
		tick, err := gw.Snapshot(context.Background(), types.UnqualifiedHandle(types.InstrumentDescriptor{Symbol: "ES", Exchange: "CME", Currency: "USD", Expiry: ""}))
		s.Require().NoError(err)
		s.Equal(10.0, tick.Last)
	}
}

func (s *ThrottledTestSuite) TestExhaustedBudgetRespectsContext() {
	paper := NewPaperGateway()
	gw := NewThrottled(paper, 1, 1)

	_, err := gw.OpenOrders(context.Background())
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = gw.OpenOrders(ctx)
	s.Require().Error(err)
	s.True(errors.IsTimeout(err))
}

func (s *ThrottledTestSuite) TestConnectIsNotThrottled() {
	paper := NewPaperGateway()
	gw := NewThrottled(paper, 1, 1)

	for i := range 5 {
		_, err := gw.Connect(context.Background(), i+1)
		s.Require().NoError(err)
	}

	s.Len(paper.ConnectAttempts(), 5)
	s.NoError(gw.Disconnect())
}
