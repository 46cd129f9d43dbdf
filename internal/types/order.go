package types

import (
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
)

type PurchaseType string

type OrderType string

type OrderStatus string

type OrderRole string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

const (
	OrderRoleEntry  OrderRole = "ENTRY"
	OrderRoleStop   OrderRole = "STOP"
	OrderRoleTarget OrderRole = "TARGET"
	// OrderRoleClose is a standalone market order used to flatten a position.
	OrderRoleClose OrderRole = "CLOSE"
)

// Order statuses as reported by the gateway.
const (
	OrderStatusPendingSubmit OrderStatus = "PENDING_SUBMIT"
	OrderStatusPreSubmitted  OrderStatus = "PRE_SUBMITTED"
	OrderStatusSubmitted     OrderStatus = "SUBMITTED"
	OrderStatusFilled        OrderStatus = "FILLED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
	OrderStatusInactive      OrderStatus = "INACTIVE"
	OrderStatusRejected      OrderStatus = "REJECTED"
)

// Opposite returns the side that flattens a position opened with p.
func (p PurchaseType) Opposite() PurchaseType {
	if p == PurchaseTypeBuy {
		return PurchaseTypeSell
	}

	return PurchaseTypeBuy
}

// Sign is +1 for BUY and -1 for SELL.
func (p PurchaseType) Sign() int {
	if p == PurchaseTypeSell {
		return -1
	}

	return 1
}

// IsConfirmed reports whether the venue has acknowledged the order as live or executed it.
func (s OrderStatus) IsConfirmed() bool {
	return s == OrderStatusSubmitted || s == OrderStatusFilled
}

// IsTerminal reports whether the order can no longer change state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusInactive, OrderStatusRejected:
		return true
	default:
		return false
	}
}

type Order struct {
	Role     OrderRole    `yaml:"role" json:"role" validate:"required,oneof=ENTRY STOP TARGET CLOSE"`
	Symbol   string       `yaml:"symbol" json:"symbol" validate:"required"`
	Side     PurchaseType `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Type     OrderType    `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT STOP"`
	Quantity int          `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	// Price is absent for market-priced orders (ENTRY and CLOSE).
	Price optional.Option[float64] `yaml:"price" json:"price"`
	// Transmit false asks the venue to hold the order until a later order in the chain is transmitted.
	Transmit bool `yaml:"transmit" json:"transmit"`
	// OrderID is assigned by the broker and stays empty until the order is accepted.
	OrderID  string `yaml:"order_id" json:"order_id"`
	ParentID string `yaml:"parent_id" json:"parent_id"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.Type != OrderTypeMarket && o.Price.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "%s order requires a price", o.Type)
	}

	return nil
}

// Bracket is the entry/stop/target triple submitted as one unit.
type Bracket struct {
	Entry  Order `json:"entry"`
	Stop   Order `json:"stop"`
	Target Order `json:"target"`
}

// Orders returns the three legs in submission order.
func (b Bracket) Orders() []Order {
	return []Order{b.Entry, b.Stop, b.Target}
}

// OrderIDs returns the broker ids that have been assigned so far.
func (b Bracket) OrderIDs() []string {
	ids := make([]string, 0, 3)

	for _, o := range b.Orders() {
		if o.OrderID != "" {
			ids = append(ids, o.OrderID)
		}
	}

	return ids
}

// Linked reports whether both children carry their own id and point at the entry.
func (b Bracket) Linked() bool {
	if b.Entry.OrderID == "" || b.Stop.OrderID == "" || b.Target.OrderID == "" {
		return false
	}

	return b.Stop.ParentID == b.Entry.OrderID && b.Target.ParentID == b.Entry.OrderID
}

// OrderReport is the gateway's view of one order: its status and, once filled, the execution.
type OrderReport struct {
	Order        Order       `json:"order"`
	Status       OrderStatus `json:"status"`
	FilledQty    int         `json:"filled_qty"`
	AvgFillPrice float64     `json:"avg_fill_price"`
	// FillID identifies the execution; empty until filled.
	FillID string `json:"fill_id"`
}
