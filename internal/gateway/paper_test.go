package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type PaperGatewayTestSuite struct {
	suite.Suite
	ctx      context.Context
	gw       *PaperGateway
	contract types.ContractHandle
}

func TestPaperGatewaySuite(t *testing.T) {
	suite.Run(t, new(PaperGatewayTestSuite))
}

func (s *PaperGatewayTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.gw = NewPaperGateway()

	_, err := s.gw.Connect(s.ctx, 1)
	s.Require().NoError(err)

	s.contract, err = s.gw.Qualify(s.ctx, types.InstrumentDescriptor{Symbol: "ES", Exchange: "CME", Currency: "USD", Expiry: "202512"})
	s.Require().NoError(err)
	s.contract.Instrument.Symbol = "ES"
}

// placeBracket submits a held entry/stop and a transmitting target, like the executor does.
func (s *PaperGatewayTestSuite) placeBracket(side types.PurchaseType, stop, target float64) (string, string, string) {
	//nolint:exhaustruct
	entry, err := s.gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleEntry, Symbol: "ES", Side: side, Type: types.OrderTypeMarket, Quantity: 1, Transmit: false,
	})
	s.Require().NoError(err)

	entryID, ok := entry.WaitForID(s.ctx, time.Second)
	s.Require().True(ok)

	//nolint:exhaustruct
	stopTicket, err := s.gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleStop, Symbol: "ES", Side: side.Opposite(), Type: types.OrderTypeStop, Quantity: 1,
		Price: optional.Some(stop), Transmit: false, ParentID: entryID,
	})
	s.Require().NoError(err)

	//nolint:exhaustruct
	targetTicket, err := s.gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleTarget, Symbol: "ES", Side: side.Opposite(), Type: types.OrderTypeLimit, Quantity: 1,
		Price: optional.Some(target), Transmit: true, ParentID: entryID,
	})
	s.Require().NoError(err)

	return entryID, stopTicket.Order().OrderID, targetTicket.Order().OrderID
}

// ============================================================================
// Connection
// ============================================================================

func (s *PaperGatewayTestSuite) TestConnect_BusyClientID() {
	gw := NewPaperGateway(WithBusyClientIDs(7))

	_, err := gw.Connect(s.ctx, 7)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeClientIDInUse))
	s.False(gw.IsConnected())

	id, err := gw.Connect(s.ctx, 8)
	s.Require().NoError(err)
	s.Equal(8, id)
	s.Equal([]int{7, 8}, gw.ConnectAttempts())
}

func (s *PaperGatewayTestSuite) TestConnect_ScriptedErrors() {
	timeout := errors.New(errors.ErrCodeConnectionTimeout, "timed out")
	gw := NewPaperGateway(WithConnectErrors(timeout, nil))

	_, err := gw.Connect(s.ctx, 3)
	s.True(errors.IsTimeout(err))

	_, err = gw.Connect(s.ctx, 3)
	s.NoError(err)
}

func (s *PaperGatewayTestSuite) TestPlaceOrder_NotConnected() {
	s.Require().NoError(s.gw.Disconnect())

	_, err := s.gw.PlaceOrder(s.ctx, s.contract, MarketClose("ES", types.PurchaseTypeSell, 1))
	s.True(errors.HasCode(err, errors.ErrCodeNotConnected))
}

// ============================================================================
// Brackets
// ============================================================================

func (s *PaperGatewayTestSuite) TestBracket_HeldUntilTransmit() {
	s.gw.SetPrice(100)

	//nolint:exhaustruct
	entry, err := s.gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleEntry, Symbol: "ES", Side: types.PurchaseTypeBuy, Type: types.OrderTypeMarket, Quantity: 1,
	})
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPreSubmitted, s.gw.Status(entry.Order().OrderID))
}

func (s *PaperGatewayTestSuite) TestBracket_TransmitFillsEntryAndWorksChildren() {
	s.gw.SetPrice(100)

	entryID, stopID, targetID := s.placeBracket(types.PurchaseTypeBuy, 99.93, 100.10)

	s.Equal(types.OrderStatusFilled, s.gw.Status(entryID))
	s.Equal(types.OrderStatusSubmitted, s.gw.Status(stopID))
	s.Equal(types.OrderStatusSubmitted, s.gw.Status(targetID))

	pos, err := FindPosition(s.ctx, s.gw, "ES")
	s.Require().NoError(err)
	s.Equal(1, pos.Quantity)
}

func (s *PaperGatewayTestSuite) TestBracket_TargetFillCancelsStop() {
	s.gw.SetPrice(100)
	_, stopID, targetID := s.placeBracket(types.PurchaseTypeBuy, 99.93, 100.10)

	s.gw.SetPrice(100.12)

	s.Equal(types.OrderStatusFilled, s.gw.Status(targetID))
	s.Equal(types.OrderStatusCancelled, s.gw.Status(stopID))

	reports, err := s.gw.OrderReports(s.ctx)
	s.Require().NoError(err)

	for _, r := range reports {
		if r.Order.OrderID == targetID {
			s.InDelta(100.10, r.AvgFillPrice, 1e-9)
			s.NotEmpty(r.FillID)
		}
	}

	pos, err := FindPosition(s.ctx, s.gw, "ES")
	s.Require().NoError(err)
	s.Equal(0, pos.Quantity)
}

func (s *PaperGatewayTestSuite) TestBracket_ShortStopTriggers() {
	s.gw.SetPrice(50)
	_, stopID, targetID := s.placeBracket(types.PurchaseTypeSell, 50.20, 49.70)

	s.gw.SetPrice(50.25)

	s.Equal(types.OrderStatusFilled, s.gw.Status(stopID))
	s.Equal(types.OrderStatusCancelled, s.gw.Status(targetID))
}

func (s *PaperGatewayTestSuite) TestBracket_WithoutConfirmationStaysPreSubmitted() {
	gw := NewPaperGateway(WithoutConfirmation())
	_, err := gw.Connect(s.ctx, 1)
	s.Require().NoError(err)
	s.gw = gw

	entryID, stopID, _ := s.placeBracket(types.PurchaseTypeBuy, 99, 101)
	s.Equal(types.OrderStatusPreSubmitted, gw.Status(entryID))
	s.Equal(types.OrderStatusPreSubmitted, gw.Status(stopID))
}

func (s *PaperGatewayTestSuite) TestUnlinkedChildrenDropParent() {
	gw := NewPaperGateway(WithUnlinkedChildren())
	_, err := gw.Connect(s.ctx, 1)
	s.Require().NoError(err)

	//nolint:exhaustruct
	ticket, err := gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleStop, Symbol: "ES", Side: types.PurchaseTypeSell, Type: types.OrderTypeStop, Quantity: 1,
		Price: optional.Some(99.0), ParentID: "1",
	})
	s.Require().NoError(err)
	s.Empty(ticket.Order().ParentID)
}

func (s *PaperGatewayTestSuite) TestRejectedRole() {
	gw := NewPaperGateway(WithRejectedRole(types.OrderRoleTarget))
	_, err := gw.Connect(s.ctx, 1)
	s.Require().NoError(err)

	//nolint:exhaustruct
	_, err = gw.PlaceOrder(s.ctx, s.contract, types.Order{
		Role: types.OrderRoleTarget, Symbol: "ES", Side: types.PurchaseTypeSell, Type: types.OrderTypeLimit, Quantity: 1,
		Price: optional.Some(101.0), Transmit: true,
	})
	s.True(errors.HasCode(err, errors.ErrCodeOrderFailed))
}

func (s *PaperGatewayTestSuite) TestOrderIDDelay() {
	gw := NewPaperGateway(WithOrderIDDelay(50 * time.Millisecond))
	_, err := gw.Connect(s.ctx, 1)
	s.Require().NoError(err)

	ticket, err := gw.PlaceOrder(s.ctx, s.contract, MarketClose("ES", types.PurchaseTypeSell, 1))
	s.Require().NoError(err)

	_, ok := ticket.WaitForID(s.ctx, 5*time.Millisecond)
	s.False(ok)

	id, ok := ticket.WaitForID(s.ctx, time.Second)
	s.True(ok)
	s.Equal("1", id)
}

// ============================================================================
// Market data
// ============================================================================

func (s *PaperGatewayTestSuite) TestStream_EmptyUntilPriced() {
	stream, err := s.gw.SubscribeQuotes(s.ctx, s.contract)
	s.Require().NoError(err)

	_, ok := stream.Latest()
	s.False(ok)

	s.gw.SetStreamTick(types.Tick{Last: 101.5, Close: 0, Ask: 0, Bid: 0, Time: time.Now()})

	tick, ok := stream.Latest()
	s.True(ok)
	s.Equal(101.5, tick.Last)
	s.NoError(stream.Close())
}

func (s *PaperGatewayTestSuite) TestFailures() {
	boom := errors.New(errors.ErrCodeStreamFailed, "down")
	s.gw.SetFailures(boom, boom, boom)

	_, err := s.gw.SubscribeQuotes(s.ctx, s.contract)
	s.Error(err)
	_, err = s.gw.Snapshot(s.ctx, s.contract)
	s.Error(err)
	_, err = s.gw.HistoricalBars(s.ctx, s.contract, time.Minute, 1)
	s.Error(err)
}

func (s *PaperGatewayTestSuite) TestHistoricalBars_TrimsToCount() {
	for _, p := range []float64{1, 2, 3, 4} {
		s.gw.SetPrice(p)
	}

	bars, err := s.gw.HistoricalBars(s.ctx, s.contract, time.Minute, 2)
	s.Require().NoError(err)
	s.Require().Len(bars, 2)
	s.Equal(3.0, bars[0].Close)
	s.Equal(4.0, bars[1].Close)
}

func (s *PaperGatewayTestSuite) TestRandomWalkDrivesSnapshots() {
	gw := NewPaperGateway(WithRandomWalk(NewRandomWalk(42, 100, 0.001, 0.25)))

	first, err := gw.Snapshot(s.ctx, s.contract)
	s.Require().NoError(err)
	s.True(types.IsUsablePrice(first.Last))

	second, err := gw.Snapshot(s.ctx, s.contract)
	s.Require().NoError(err)
	s.True(types.IsUsablePrice(second.Last))
}

// ============================================================================
// Helpers
// ============================================================================

func (s *PaperGatewayTestSuite) TestCancelAllAndFlatten() {
	s.gw.SetPrice(100)
	entryID, stopID, targetID := s.placeBracket(types.PurchaseTypeBuy, 99, 101)

	s.Require().NoError(CancelAll(s.ctx, s.gw))
	s.Equal(types.OrderStatusFilled, s.gw.Status(entryID))
	s.ElementsMatch([]string{stopID, targetID}, s.gw.Cancelled())

	closed, err := Flatten(s.ctx, s.gw, s.contract)
	s.Require().NoError(err)
	s.Require().Len(closed, 1)
	s.Equal(types.PurchaseTypeSell, closed[0].Side)
	s.Equal(types.OrderRoleClose, closed[0].Role)

	pos, err := FindPosition(s.ctx, s.gw, "ES")
	s.Require().NoError(err)
	s.Equal(0, pos.Quantity)
}

func (s *PaperGatewayTestSuite) TestCancelOrders_SkipsBlankAndReportsUnknown() {
	err := CancelOrders(s.ctx, s.gw, "", "404")
	s.True(errors.HasCode(err, errors.ErrCodeCancelFailed))
}

func (s *PaperGatewayTestSuite) TestFillOrder() {
	s.gw.SetPrice(100)

	ticket, err := s.gw.PlaceOrder(s.ctx, s.contract, MarketClose("ES", types.PurchaseTypeSell, 2))
	s.Require().NoError(err)

	// market orders fill on transmit; FillOrder is a no-op afterwards
	s.Require().NoError(s.gw.FillOrder(ticket.Order().OrderID, 50))

	pos, err := FindPosition(s.ctx, s.gw, "ES")
	s.Require().NoError(err)
	s.Equal(-2, pos.Quantity)
	s.Error(s.gw.FillOrder("404", 1))
}
