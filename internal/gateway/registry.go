package gateway

import (
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type ProviderType string

const (
	// ProviderPaper is the in-process simulated broker.
	ProviderPaper        ProviderType = "paper"
	ProviderBinancePaper ProviderType = "binance-paper"
	ProviderBinanceLive  ProviderType = "binance-live"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderPaper: {
		Name:           string(ProviderPaper),
		DisplayName:    "Paper",
		Description:    "In-process simulated broker driven by a random walk",
		IsPaperTrading: true,
	},
	ProviderBinancePaper: {
		Name:           string(ProviderBinancePaper),
		DisplayName:    "Binance Testnet",
		Description:    "Binance testnet for paper trading cryptocurrency without real funds",
		IsPaperTrading: true,
	},
	ProviderBinanceLive: {
		Name:           string(ProviderBinanceLive),
		DisplayName:    "Binance Live",
		Description:    "Binance live environment for real-funds cryptocurrency trading",
		IsPaperTrading: false,
	},
}

// GetSupportedProviders returns the registered provider names.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific gateway provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported gateway provider: %s", providerName)
	}

	return info, nil
}

// FactoryOptions carries the per-provider settings NewFactory needs.
type FactoryOptions struct {
	Binance BinanceGatewayConfig
	Paper   []PaperOption
	// RequestsPerMinute throttles every gateway call except Connect and Disconnect. Zero disables it.
	RequestsPerMinute int
	Burst             int
}

// NewFactory returns a Factory that builds a fresh gateway of the given provider on every call.
func NewFactory(providerType ProviderType, opts FactoryOptions) (Factory, error) {
	var build Factory

	switch providerType {
	case ProviderPaper:
		build = func() (Gateway, error) {
			return NewPaperGateway(opts.Paper...), nil
		}
	case ProviderBinancePaper, ProviderBinanceLive:
		cfg := opts.Binance
		cfg.Testnet = providerType == ProviderBinancePaper

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		build = func() (Gateway, error) {
			return NewBinanceGateway(cfg)
		}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported gateway provider: %s", providerType)
	}

	if opts.RequestsPerMinute <= 0 {
		return build, nil
	}

	return func() (Gateway, error) {
		gw, err := build()
		if err != nil {
			return nil, err
		}

		return NewThrottled(gw, opts.RequestsPerMinute, opts.Burst), nil
	}, nil
}
