package types

import (
	"fmt"
	"strings"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// InstrumentDescriptor identifies the contract an engine instance trades.
// It is passed by value and never mutated after construction.
type InstrumentDescriptor struct {
	Symbol   string `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Underlying symbol (e.g. ES)" validate:"required"`
	Exchange string `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange" validate:"required"`
	Currency string `yaml:"currency" json:"currency" jsonschema:"title=Currency" validate:"required"`
	// Expiry is the contract month (YYYYMM) for futures; empty for spot instruments.
	Expiry string `yaml:"expiry" json:"expiry" jsonschema:"title=Expiry,description=Contract month YYYYMM"`
}

// NewInstrumentDescriptor trims and validates the fields, failing when symbol, exchange or currency is blank.
func NewInstrumentDescriptor(symbol, exchange, currency, expiry string) (InstrumentDescriptor, error) {
	d := InstrumentDescriptor{
		Symbol:   strings.TrimSpace(symbol),
		Exchange: strings.TrimSpace(exchange),
		Currency: strings.TrimSpace(currency),
		Expiry:   strings.TrimSpace(expiry),
	}

	if err := d.Validate(); err != nil {
		return InstrumentDescriptor{}, err
	}

	return d, nil
}

// Validate validates the InstrumentDescriptor struct.
func (d InstrumentDescriptor) Validate() error {
	validate := validator.New()
	if err := validate.Struct(d); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInstrument, "invalid instrument", err)
	}

	for name, v := range map[string]string{"symbol": d.Symbol, "exchange": d.Exchange, "currency": d.Currency} {
		if strings.TrimSpace(v) == "" {
			return errors.Newf(errors.ErrCodeInvalidInstrument, "instrument %s must not be blank", name)
		}
	}

	return nil
}

func (d InstrumentDescriptor) String() string {
	if d.Expiry == "" {
		return fmt.Sprintf("%s@%s/%s", d.Symbol, d.Exchange, d.Currency)
	}

	return fmt.Sprintf("%s %s@%s/%s", d.Symbol, d.Expiry, d.Exchange, d.Currency)
}

// ContractHandle is the gateway's resolution of an InstrumentDescriptor.
// An unqualified handle still carries the descriptor so quote requests can be attempted.
type ContractHandle struct {
	Instrument  InstrumentDescriptor `json:"instrument"`
	ContractID  int64                `json:"contract_id"`
	LocalSymbol string               `json:"local_symbol"`
	Qualified   bool                 `json:"qualified"`
}

// UnqualifiedHandle wraps the descriptor without any venue resolution.
func UnqualifiedHandle(d InstrumentDescriptor) ContractHandle {
	return ContractHandle{
		Instrument:  d,
		ContractID:  0,
		LocalSymbol: d.Symbol,
		Qualified:   false,
	}
}
