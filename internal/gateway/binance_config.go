package gateway

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// BinanceGatewayConfig contains configuration for the Binance gateway.
type BinanceGatewayConfig struct {
	ApiKey    string `yaml:"api_key" json:"apiKey" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `yaml:"secret_key" json:"secretKey" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	// BaseURL overrides the REST endpoint. Takes precedence over Testnet.
	BaseURL string `yaml:"base_url" json:"baseUrl,omitempty" jsonschema:"title=Base URL,description=Custom REST endpoint"`
	// StreamURL overrides the market data websocket endpoint.
	StreamURL string `yaml:"stream_url" json:"streamUrl,omitempty" jsonschema:"title=Stream URL,description=Custom websocket endpoint"`
	Testnet   bool   `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,description=Use the Binance spot testnet"`
	// LotSize is the base asset amount traded per unit of order quantity.
	LotSize           float64 `yaml:"lot_size" json:"lotSize" jsonschema:"title=Lot Size,default=0.001" validate:"gt=0"`
	QuantityPrecision int     `yaml:"quantity_precision" json:"quantityPrecision" jsonschema:"default=3" validate:"gte=0,lte=8"`
	PricePrecision    int     `yaml:"price_precision" json:"pricePrecision" jsonschema:"default=2" validate:"gte=0,lte=8"`
}

// DefaultBinanceGatewayConfig returns a testnet configuration without credentials.
func DefaultBinanceGatewayConfig() BinanceGatewayConfig {
	return BinanceGatewayConfig{
		ApiKey:            "",
		SecretKey:         "",
		BaseURL:           "",
		StreamURL:         "",
		Testnet:           true,
		LotSize:           0.001,
		QuantityPrecision: 3,
		PricePrecision:    2,
	}
}

// Validate validates the BinanceGatewayConfig struct.
func (c *BinanceGatewayConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance gateway config", err)
	}

	return nil
}

// ParseBinanceConfig parses a JSON configuration string on top of the defaults.
func ParseBinanceConfig(jsonConfig string) (*BinanceGatewayConfig, error) {
	config := DefaultBinanceGatewayConfig()
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse binance config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
