package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// PaperGateway is an in-memory broker. It honours the transmit/parent chain of bracket
// orders, fills market orders at the current price and triggers stop and target children
// as the price moves. It backs dry runs and the engine's tests.
type PaperGateway struct {
	mu sync.Mutex

	connected    bool
	clientID     int
	busyIDs      map[int]bool
	connectErrs  []error
	connectCalls []int
	qualifyErr   error

	streamTick   types.Tick
	snapshotTick types.Tick
	streamErr    error
	snapshotErr  error
	bars         []types.MarketData
	barsErr      error
	barSource    BarSource
	feed         *RandomWalk

	nextID    int
	orders    map[string]*paperOrder
	sequence  []string
	placed    []types.Order
	cancelled []string
	positions map[string]int

	confirm      bool
	idDelay      time.Duration
	unlinked     bool
	rejectedRole types.OrderRole
}

type paperOrder struct {
	ticket *Ticket
	order  types.Order
	status types.OrderStatus
	fill   float64
	fillID string
	filled int
}

// PaperOption configures a PaperGateway.
type PaperOption func(*PaperGateway)

// WithBusyClientIDs marks identities the simulated gateway refuses as already in use.
func WithBusyClientIDs(ids ...int) PaperOption {
	return func(g *PaperGateway) {
		for _, id := range ids {
			g.busyIDs[id] = true
		}
	}
}

// WithConnectErrors scripts the results of the next Connect calls.
func WithConnectErrors(errs ...error) PaperOption {
	return func(g *PaperGateway) {
		g.connectErrs = append(g.connectErrs, errs...)
	}
}

// WithoutConfirmation keeps transmitted brackets in PRE_SUBMITTED forever.
func WithoutConfirmation() PaperOption {
	return func(g *PaperGateway) {
		g.confirm = false
	}
}

// WithOrderIDDelay delays broker id assignment.
func WithOrderIDDelay(d time.Duration) PaperOption {
	return func(g *PaperGateway) {
		g.idDelay = d
	}
}

// WithUnlinkedChildren makes the gateway drop the parent reference of child orders.
func WithUnlinkedChildren() PaperOption {
	return func(g *PaperGateway) {
		g.unlinked = true
	}
}

// WithRejectedRole makes PlaceOrder fail for orders of the given role.
func WithRejectedRole(role types.OrderRole) PaperOption {
	return func(g *PaperGateway) {
		g.rejectedRole = role
	}
}

// WithBarSource serves historical bars from a market data vendor.
func WithBarSource(src BarSource) PaperOption {
	return func(g *PaperGateway) {
		g.barSource = src
	}
}

// WithRandomWalk drives quotes from a synthetic price path; every snapshot advances it one step.
func WithRandomWalk(walk *RandomWalk) PaperOption {
	return func(g *PaperGateway) {
		g.feed = walk
	}
}

// NewPaperGateway creates a disconnected paper gateway.
func NewPaperGateway(opts ...PaperOption) *PaperGateway {
	//nolint:exhaustruct // zero values are the initial state
	g := &PaperGateway{
		busyIDs:   make(map[int]bool),
		orders:    make(map[string]*paperOrder),
		positions: make(map[string]int),
		confirm:   true,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *PaperGateway) Connect(_ context.Context, clientID int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connectCalls = append(g.connectCalls, clientID)

	if len(g.connectErrs) > 0 {
		err := g.connectErrs[0]
		g.connectErrs = g.connectErrs[1:]

		if err != nil {
			return 0, err
		}
	}

	if g.busyIDs[clientID] {
		return 0, errors.Newf(errors.ErrCodeClientIDInUse, "client id %d is already in use", clientID)
	}

	g.connected = true
	g.clientID = clientID

	return clientID, nil
}

func (g *PaperGateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connected = false

	return nil
}

func (g *PaperGateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.connected
}

func (g *PaperGateway) Qualify(_ context.Context, instrument types.InstrumentDescriptor) (types.ContractHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.qualifyErr != nil {
		return types.ContractHandle{}, g.qualifyErr
	}

	return types.ContractHandle{
		Instrument:  instrument,
		ContractID:  int64(len(instrument.Symbol)*1000 + len(instrument.Expiry)),
		LocalSymbol: instrument.Symbol + instrument.Expiry,
		Qualified:   true,
	}, nil
}

func (g *PaperGateway) SubscribeQuotes(_ context.Context, _ types.ContractHandle) (QuoteStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.streamErr != nil {
		return nil, g.streamErr
	}

	return &paperStream{gateway: g}, nil
}

func (g *PaperGateway) Snapshot(_ context.Context, _ types.ContractHandle) (types.Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snapshotErr != nil {
		return types.Tick{}, g.snapshotErr
	}

	if g.feed != nil {
		g.setPriceLocked(g.feed.Next())
	}

	return g.snapshotTick, nil
}

func (g *PaperGateway) HistoricalBars(ctx context.Context, contract types.ContractHandle, barSize time.Duration, count int) ([]types.MarketData, error) {
	g.mu.Lock()
	src := g.barSource
	bars := g.bars
	barsErr := g.barsErr
	g.mu.Unlock()

	if src != nil {
		return src.Bars(ctx, contract.Instrument.Symbol, barSize, count)
	}

	if barsErr != nil {
		return nil, barsErr
	}

	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	out := make([]types.MarketData, len(bars))
	copy(out, bars)

	return out, nil
}

func (g *PaperGateway) PlaceOrder(_ context.Context, _ types.ContractHandle, order types.Order) (*Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "paper gateway is not connected")
	}

	if g.rejectedRole != "" && order.Role == g.rejectedRole {
		return nil, errors.Newf(errors.ErrCodeOrderFailed, "%s order rejected", order.Role)
	}

	g.nextID++
	id := strconv.Itoa(g.nextID)

	if g.unlinked && order.ParentID != "" {
		order.ParentID = ""
	}

	order.OrderID = ""
	ticket := NewTicket(order)
	order.OrderID = id

	po := &paperOrder{
		ticket: ticket,
		order:  order,
		status: types.OrderStatusPreSubmitted,
		fill:   0,
		fillID: "",
		filled: 0,
	}
	g.orders[id] = po
	g.sequence = append(g.sequence, id)
	g.placed = append(g.placed, order)

	if g.idDelay > 0 {
		time.AfterFunc(g.idDelay, func() { ticket.AssignID(id) })
	} else {
		ticket.AssignID(id)
	}

	if order.Transmit {
		g.transmitLocked(po)
	}

	return ticket, nil
}

func (g *PaperGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	po, ok := g.orders[orderID]
	if !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", orderID)
	}

	if !po.status.IsTerminal() {
		po.status = types.OrderStatusCancelled
		g.cancelled = append(g.cancelled, orderID)
	}

	return nil
}

func (g *PaperGateway) OpenOrders(_ context.Context) ([]types.OrderReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reports := make([]types.OrderReport, 0)

	for _, id := range g.sequence {
		po := g.orders[id]
		if !po.status.IsTerminal() {
			reports = append(reports, po.report())
		}
	}

	return reports, nil
}

func (g *PaperGateway) Positions(_ context.Context) ([]types.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	positions := make([]types.Position, 0, len(g.positions))

	for symbol, qty := range g.positions {
		if qty != 0 {
			positions = append(positions, types.Position{Symbol: symbol, Quantity: qty, AvgCost: 0})
		}
	}

	return positions, nil
}

func (g *PaperGateway) OrderReports(_ context.Context) ([]types.OrderReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reports := make([]types.OrderReport, 0, len(g.sequence))
	for _, id := range g.sequence {
		reports = append(reports, g.orders[id].report())
	}

	return reports, nil
}

// SetPrice moves the market: both quote paths report price as the last trade and
// working stop and target orders are triggered.
func (g *PaperGateway) SetPrice(price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.setPriceLocked(price)
}

// SetStreamTick replaces the tick seen by streaming subscriptions.
func (g *PaperGateway) SetStreamTick(t types.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.streamTick = t
}

// SetSnapshotTick replaces the tick returned by Snapshot.
func (g *PaperGateway) SetSnapshotTick(t types.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.snapshotTick = t
}

// SetBars replaces the locally served historical bars.
func (g *PaperGateway) SetBars(bars []types.MarketData) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.bars = bars
}

// SetFailures makes the quote paths fail. Nil clears a failure.
func (g *PaperGateway) SetFailures(stream, snapshot, bars error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.streamErr = stream
	g.snapshotErr = snapshot
	g.barsErr = bars
}

// SetQualifyError makes Qualify fail.
func (g *PaperGateway) SetQualifyError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.qualifyErr = err
}

// SetPosition overrides the net position for symbol.
func (g *PaperGateway) SetPosition(symbol string, quantity int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.positions[symbol] = quantity
}

// FillOrder fills a working order at price, cancelling its bracket sibling.
func (g *PaperGateway) FillOrder(orderID string, price float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	po, ok := g.orders[orderID]
	if !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", orderID)
	}

	g.fillLocked(po, price)

	return nil
}

// Placed returns every order submitted so far, in submission order.
func (g *PaperGateway) Placed() []types.Order {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]types.Order, len(g.placed))
	copy(out, g.placed)

	return out
}

// Cancelled returns the ids cancelled so far.
func (g *PaperGateway) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.cancelled))
	copy(out, g.cancelled)

	return out
}

// ConnectAttempts returns the client identities passed to Connect.
func (g *PaperGateway) ConnectAttempts() []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]int, len(g.connectCalls))
	copy(out, g.connectCalls)

	return out
}

// Status returns the status of an order, empty if unknown.
func (g *PaperGateway) Status(orderID string) types.OrderStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	if po, ok := g.orders[orderID]; ok {
		return po.status
	}

	return ""
}

func (g *PaperGateway) setPriceLocked(price float64) {
	now := time.Now()
	g.streamTick = types.Tick{Last: price, Close: price, Ask: price, Bid: price, Time: now}
	g.snapshotTick = g.streamTick
	g.bars = append(g.bars, types.MarketData{
		Id:     "",
		Symbol: "",
		Time:   now,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 0,
	})

	for _, id := range g.sequence {
		po := g.orders[id]
		if po.status != types.OrderStatusSubmitted || po.order.Price.IsNone() {
			continue
		}

		trigger := po.order.Price.Unwrap()

		switch {
		case po.order.Type == types.OrderTypeStop && po.order.Side == types.PurchaseTypeSell && price <= trigger,
			po.order.Type == types.OrderTypeStop && po.order.Side == types.PurchaseTypeBuy && price >= trigger,
			po.order.Type == types.OrderTypeLimit && po.order.Side == types.PurchaseTypeSell && price >= trigger,
			po.order.Type == types.OrderTypeLimit && po.order.Side == types.PurchaseTypeBuy && price <= trigger:
			g.fillLocked(po, trigger)
		}
	}
}

// transmitLocked activates po and every held order in its chain.
func (g *PaperGateway) transmitLocked(po *paperOrder) {
	parentID := po.order.ParentID
	if parentID == "" {
		parentID = po.order.OrderID
	}

	chain := make([]*paperOrder, 0, 3)

	for _, id := range g.sequence {
		candidate := g.orders[id]
		if candidate.status != types.OrderStatusPreSubmitted {
			continue
		}

		if candidate.order.OrderID == parentID || candidate.order.ParentID == parentID || candidate == po {
			chain = append(chain, candidate)
		}
	}

	if !g.confirm {
		return
	}

	price, _, _ := g.snapshotTick.Best()

	for _, member := range chain {
		if member.order.Type == types.OrderTypeMarket {
			g.fillLocked(member, price)
		} else {
			member.status = types.OrderStatusSubmitted
		}
	}
}

func (g *PaperGateway) fillLocked(po *paperOrder, price float64) {
	if po.status.IsTerminal() {
		return
	}

	po.status = types.OrderStatusFilled
	po.fill = price
	po.filled = po.order.Quantity
	po.fillID = uuid.NewString()
	g.positions[po.order.Symbol] += po.order.Side.Sign() * po.order.Quantity

	if po.order.ParentID == "" {
		return
	}

	for _, id := range g.sequence {
		sibling := g.orders[id]
		if sibling != po && sibling.order.ParentID == po.order.ParentID && !sibling.status.IsTerminal() {
			sibling.status = types.OrderStatusCancelled
		}
	}
}

func (po *paperOrder) report() types.OrderReport {
	return types.OrderReport{
		Order:        po.order,
		Status:       po.status,
		FilledQty:    po.filled,
		AvgFillPrice: po.fill,
		FillID:       po.fillID,
	}
}

type paperStream struct {
	gateway *PaperGateway
}

func (s *paperStream) Latest() (types.Tick, bool) {
	s.gateway.mu.Lock()
	defer s.gateway.mu.Unlock()

	if s.gateway.streamTick == (types.Tick{}) {
		return types.Tick{}, false
	}

	return s.gateway.streamTick, true
}

func (s *paperStream) Close() error {
	return nil
}

var _ Gateway = (*PaperGateway)(nil)
