package gateway

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

const (
	// DefaultBinanceStreamURL is the public market data websocket endpoint.
	DefaultBinanceStreamURL = "wss://stream.binance.com:9443/stream"
	// DefaultBinanceTestnetStreamURL is the testnet market data websocket endpoint.
	DefaultBinanceTestnetStreamURL = "wss://stream.testnet.binance.vision/stream"
)

// BinanceGateway adapts the Binance spot API to the Gateway boundary.
//
// Binance has no native parent/child orders, so held orders are staged locally under a
// client order id and the chain is sent when its transmitting order arrives: the market
// entry first, then the stop-loss-limit and the take-profit limit. Order quantities are
// expressed in lots of config.LotSize base units.
type BinanceGateway struct {
	client    BinanceClient
	config    BinanceGatewayConfig
	streamURL string
	dialer    func(ctx context.Context, url string) (QuoteStream, error)

	mu        sync.Mutex
	connected bool
	clientID  int
	assets    map[string]string // symbol -> base asset
	orders    map[string]*binanceOrder
	sequence  []string
}

type binanceOrder struct {
	order  types.Order
	staged bool
	status types.OrderStatus
}

// NewBinanceGateway creates a gateway against the live API or the testnet.
func NewBinanceGateway(config BinanceGatewayConfig) (*BinanceGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Testnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.ApiKey, config.SecretKey)

	// Set custom base URL if provided (takes precedence over Testnet)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return newBinanceGatewayWithClient(&realBinanceClient{client: client}, config), nil
}

// newBinanceGatewayWithClient creates a gateway with a custom client.
// This is used for testing with mock clients.
func newBinanceGatewayWithClient(client BinanceClient, config BinanceGatewayConfig) *BinanceGateway {
	streamURL := config.StreamURL
	if streamURL == "" {
		streamURL = DefaultBinanceStreamURL
		if config.Testnet {
			streamURL = DefaultBinanceTestnetStreamURL
		}
	}

	g := &BinanceGateway{
		client:    client,
		config:    config,
		streamURL: streamURL,
		dialer:    nil,
		mu:        sync.Mutex{},
		connected: false,
		clientID:  0,
		assets:    make(map[string]string),
		orders:    make(map[string]*binanceOrder),
		sequence:  nil,
	}

	g.dialer = func(ctx context.Context, url string) (QuoteStream, error) {
		stream, err := DialQuoteStream(ctx, url, ParseBinanceStreamMessage)
		if err != nil {
			return nil, err
		}

		return stream, nil
	}

	return g
}

// Connect verifies connectivity. Binance has no session slots, so the requested
// identity is always granted; it prefixes the client order ids of this session.
func (b *BinanceGateway) Connect(ctx context.Context, clientID int) (int, error) {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return 0, errors.Wrap(errors.ErrCodeConnectionTimeout, "binance ping timed out", err)
		}

		return 0, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to connect to Binance API", err)
	}

	b.mu.Lock()
	b.connected = true
	b.clientID = clientID
	b.mu.Unlock()

	return clientID, nil
}

func (b *BinanceGateway) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = false

	return nil
}

func (b *BinanceGateway) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

// Qualify resolves the instrument to a Binance symbol. The spot symbol is Symbol+Currency (BTC + USDT).
func (b *BinanceGateway) Qualify(ctx context.Context, instrument types.InstrumentDescriptor) (types.ContractHandle, error) {
	symbol := binanceSymbol(instrument)

	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return types.ContractHandle{}, errors.Wrapf(errors.ErrCodeQualificationFailed, err, "failed to resolve %s", symbol)
	}

	for i, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		b.mu.Lock()
		b.assets[symbol] = s.BaseAsset
		b.mu.Unlock()

		return types.ContractHandle{
			Instrument:  instrument,
			ContractID:  int64(i + 1),
			LocalSymbol: symbol,
			Qualified:   true,
		}, nil
	}

	return types.ContractHandle{}, errors.Newf(errors.ErrCodeQualificationFailed, "symbol %s not listed", symbol)
}

func (b *BinanceGateway) SubscribeQuotes(ctx context.Context, contract types.ContractHandle) (QuoteStream, error) {
	stream := strings.ToLower(contract.LocalSymbol)
	url := fmt.Sprintf("%s?streams=%s@aggTrade/%s@bookTicker", b.streamURL, stream, stream)

	return b.dialer(ctx, url)
}

func (b *BinanceGateway) Snapshot(ctx context.Context, contract types.ContractHandle) (types.Tick, error) {
	tick := types.Tick{Last: 0, Close: 0, Ask: 0, Bid: 0, Time: time.Now()}

	prices, err := b.client.NewListPricesService().Symbol(contract.LocalSymbol).Do(ctx)
	if err != nil {
		return types.Tick{}, errors.Wrap(errors.ErrCodeQuoteUnavailable, "failed to get last price from Binance", err)
	}

	for _, p := range prices {
		if p.Symbol == contract.LocalSymbol {
			tick.Last = parseFloat(p.Price)
		}
	}

	tickers, err := b.client.NewListBookTickersService().Symbol(contract.LocalSymbol).Do(ctx)
	if err != nil {
		// last price alone is a usable snapshot
		return tick, nil //nolint:nilerr
	}

	for _, t := range tickers {
		if t.Symbol == contract.LocalSymbol {
			tick.Bid = parseFloat(t.BidPrice)
			tick.Ask = parseFloat(t.AskPrice)
		}
	}

	return tick, nil
}

func (b *BinanceGateway) HistoricalBars(ctx context.Context, contract types.ContractHandle, barSize time.Duration, count int) ([]types.MarketData, error) {
	interval, err := durationToBinanceInterval(barSize)
	if err != nil {
		return nil, err
	}

	klines, err := b.client.NewKlinesService().
		Symbol(contract.LocalSymbol).
		Interval(interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to fetch klines from Binance", err)
	}

	bars := make([]types.MarketData, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, types.MarketData{
			Id:     "",
			Symbol: contract.Instrument.Symbol,
			Time:   time.UnixMilli(k.OpenTime),
			Open:   parseFloat(k.Open),
			High:   parseFloat(k.High),
			Low:    parseFloat(k.Low),
			Close:  parseFloat(k.Close),
			Volume: parseFloat(k.Volume),
		})
	}

	return bars, nil
}

// PlaceOrder stages held orders and sends the whole chain once a transmitting order arrives.
func (b *BinanceGateway) PlaceOrder(ctx context.Context, contract types.ContractHandle, order types.Order) (*Ticket, error) {
	if !b.IsConnected() {
		return nil, errors.New(errors.ErrCodeNotConnected, "binance gateway is not connected")
	}

	if order.Quantity <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidOrder, "order quantity must be greater than zero")
	}

	b.mu.Lock()
	order.Symbol = contract.LocalSymbol
	order.OrderID = fmt.Sprintf("c%d-%s", b.clientID, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	tracked := &binanceOrder{order: order, staged: true, status: types.OrderStatusPendingSubmit}
	b.orders[order.OrderID] = tracked
	b.sequence = append(b.sequence, order.OrderID)
	b.mu.Unlock()

	if !order.Transmit {
		return NewTicket(order), nil
	}

	for _, member := range b.chainFor(order) {
		if err := b.send(ctx, member); err != nil {
			return nil, err
		}
	}

	return NewTicket(order), nil
}

// chainFor returns the staged orders activated by the transmitting order, entry first.
func (b *BinanceGateway) chainFor(order types.Order) []*binanceOrder {
	b.mu.Lock()
	defer b.mu.Unlock()

	root := order.ParentID
	if root == "" {
		root = order.OrderID
	}

	chain := make([]*binanceOrder, 0, 3)

	for _, id := range b.sequence {
		o := b.orders[id]
		if !o.staged || o.status != types.OrderStatusPendingSubmit {
			continue
		}

		if o.order.OrderID == root || o.order.ParentID == root {
			chain = append(chain, o)
		}
	}

	return chain
}

func (b *BinanceGateway) send(ctx context.Context, tracked *binanceOrder) error {
	order := tracked.order

	var side binance.SideType

	switch order.Side {
	case types.PurchaseTypeBuy:
		side = binance.SideTypeBuy
	case types.PurchaseTypeSell:
		side = binance.SideTypeSell
	default:
		return errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", order.Side)
	}

	service := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Quantity(b.formatQuantity(order.Quantity)).
		NewClientOrderID(order.OrderID)

	switch order.Type {
	case types.OrderTypeMarket:
		service = service.Type(binance.OrderTypeMarket)
	case types.OrderTypeLimit:
		service = service.Type(binance.OrderTypeLimit).
			Price(b.formatPrice(order.Price.TakeOr(0))).
			TimeInForce(binance.TimeInForceTypeGTC)
	case types.OrderTypeStop:
		stop := b.formatPrice(order.Price.TakeOr(0))
		service = service.Type(binance.OrderTypeStopLossLimit).
			StopPrice(stop).
			Price(stop).
			TimeInForce(binance.TimeInForceTypeGTC)
	default:
		return errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", order.Type)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to place %s order on Binance", order.Role)
	}

	b.mu.Lock()
	tracked.staged = false
	tracked.status = mapBinanceOrderStatus(resp.Status)
	b.mu.Unlock()

	return nil
}

func (b *BinanceGateway) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	tracked, ok := b.orders[orderID]

	if ok && tracked.staged {
		tracked.status = types.OrderStatusCancelled
		b.mu.Unlock()

		return nil
	}
	b.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", orderID)
	}

	_, err := b.client.NewCancelOrderService().
		Symbol(tracked.order.Symbol).
		OrigClientOrderID(orderID).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCancelFailed, "failed to cancel order on Binance", err)
	}

	b.mu.Lock()
	tracked.status = types.OrderStatusCancelled
	b.mu.Unlock()

	return nil
}

func (b *BinanceGateway) OpenOrders(ctx context.Context) ([]types.OrderReport, error) {
	reports := make([]types.OrderReport, 0)

	for _, symbol := range b.symbols() {
		open, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeOrderFailed, "failed to get open orders from Binance", err)
		}

		for _, bo := range open {
			reports = append(reports, b.reportFor(bo))
		}
	}

	b.mu.Lock()
	for _, id := range b.sequence {
		o := b.orders[id]
		if o.staged && o.status == types.OrderStatusPendingSubmit {
			reports = append(reports, types.OrderReport{Order: o.order, Status: o.status, FilledQty: 0, AvgFillPrice: 0, FillID: ""})
		}
	}
	b.mu.Unlock()

	return reports, nil
}

// Positions derives net long positions from base asset balances, in whole lots.
func (b *BinanceGateway) Positions(ctx context.Context) ([]types.Position, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePositionNotFound, "failed to get account info from Binance", err)
	}

	b.mu.Lock()
	assets := make(map[string]string, len(b.assets))
	for symbol, asset := range b.assets {
		assets[asset] = symbol
	}
	b.mu.Unlock()

	positions := make([]types.Position, 0)

	for _, balance := range account.Balances {
		symbol, ok := assets[balance.Asset]
		if !ok {
			continue
		}

		lots := int(math.Floor((parseFloat(balance.Free) + parseFloat(balance.Locked)) / b.config.LotSize))
		if lots > 0 {
			positions = append(positions, types.Position{Symbol: symbol, Quantity: lots, AvgCost: 0})
		}
	}

	return positions, nil
}

// OrderReports queries every order sent in this session. When one bracket child has
// filled, its still-working sibling is cancelled, emulating a one-cancels-other group.
func (b *BinanceGateway) OrderReports(ctx context.Context) ([]types.OrderReport, error) {
	b.mu.Lock()
	ids := make([]string, len(b.sequence))
	copy(ids, b.sequence)
	b.mu.Unlock()

	reports := make([]types.OrderReport, 0, len(ids))
	filledParents := make(map[string]bool)

	for _, id := range ids {
		b.mu.Lock()
		tracked := b.orders[id]
		staged := tracked.staged
		b.mu.Unlock()

		if staged {
			reports = append(reports, types.OrderReport{Order: tracked.order, Status: tracked.status, FilledQty: 0, AvgFillPrice: 0, FillID: ""})

			continue
		}

		bo, err := b.client.NewGetOrderService().Symbol(tracked.order.Symbol).OrigClientOrderID(id).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeOrderNotFound, err, "failed to query order %s", id)
		}

		report := b.reportFor(bo)
		reports = append(reports, report)

		if report.Status == types.OrderStatusFilled && tracked.order.ParentID != "" {
			filledParents[tracked.order.ParentID] = true
		}
	}

	for i, report := range reports {
		if !filledParents[report.Order.ParentID] || report.Status.IsTerminal() {
			continue
		}

		if err := b.CancelOrder(ctx, report.Order.OrderID); err == nil {
			reports[i].Status = types.OrderStatusCancelled
		}
	}

	return reports, nil
}

func (b *BinanceGateway) reportFor(bo *binance.Order) types.OrderReport {
	status := mapBinanceOrderStatus(bo.Status)

	b.mu.Lock()
	tracked, ok := b.orders[bo.ClientOrderID]
	if ok {
		tracked.status = status
	}
	b.mu.Unlock()

	var order types.Order
	if ok {
		order = tracked.order
	} else {
		order = convertBinanceOrder(bo, b.config.LotSize)
	}

	executed := parseFloat(bo.ExecutedQuantity)
	avg := 0.0

	if executed > 0 {
		avg = parseFloat(bo.CummulativeQuoteQuantity) / executed
	}

	fillID := ""
	if status == types.OrderStatusFilled {
		fillID = strconv.FormatInt(bo.OrderID, 10)
	}

	return types.OrderReport{
		Order:        order,
		Status:       status,
		FilledQty:    int(math.Round(executed / b.config.LotSize)),
		AvgFillPrice: avg,
		FillID:       fillID,
	}
}

func (b *BinanceGateway) symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool)
	symbols := make([]string, 0)

	for symbol := range b.assets {
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}

	return symbols
}

func (b *BinanceGateway) formatQuantity(lots int) string {
	return strconv.FormatFloat(float64(lots)*b.config.LotSize, 'f', b.config.QuantityPrecision, 64)
}

func (b *BinanceGateway) formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', b.config.PricePrecision, 64)
}

// Helper functions

// mapBinanceOrderStatus maps Binance order status to our OrderStatus type.
func mapBinanceOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled, binance.OrderStatusTypePendingCancel:
		return types.OrderStatusSubmitted
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeCanceled:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	case binance.OrderStatusTypeExpired:
		return types.OrderStatusInactive
	default:
		return types.OrderStatusPendingSubmit
	}
}

// convertBinanceOrder converts an order placed outside this session.
func convertBinanceOrder(bo *binance.Order, lotSize float64) types.Order {
	side := types.PurchaseTypeBuy
	if bo.Side == binance.SideTypeSell {
		side = types.PurchaseTypeSell
	}

	orderType := types.OrderTypeLimit
	price := optional.Some(parseFloat(bo.Price))

	switch bo.Type {
	case binance.OrderTypeMarket:
		orderType = types.OrderTypeMarket
		price = optional.None[float64]()
	case binance.OrderTypeStopLoss, binance.OrderTypeStopLossLimit:
		orderType = types.OrderTypeStop
		price = optional.Some(parseFloat(bo.StopPrice))
	}

	return types.Order{
		Role:     types.OrderRoleClose,
		Symbol:   bo.Symbol,
		Side:     side,
		Type:     orderType,
		Quantity: int(math.Round(parseFloat(bo.OrigQuantity) / lotSize)),
		Price:    price,
		Transmit: true,
		OrderID:  bo.ClientOrderID,
		ParentID: "",
	}
}

func durationToBinanceInterval(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1m", nil
	case 3 * time.Minute:
		return "3m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported bar size %s", d)
	}
}

func binanceSymbol(instrument types.InstrumentDescriptor) string {
	if strings.HasSuffix(strings.ToUpper(instrument.Symbol), strings.ToUpper(instrument.Currency)) {
		return strings.ToUpper(instrument.Symbol)
	}

	return strings.ToUpper(instrument.Symbol + instrument.Currency)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return v
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }

	var t timeout
	if errors.As(err, &t) {
		return t.Timeout()
	}

	return false
}

var _ Gateway = (*BinanceGateway)(nil)
