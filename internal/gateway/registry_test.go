package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

func TestGetSupportedProviders(t *testing.T) {
	assert.ElementsMatch(t, []string{"paper", "binance-paper", "binance-live"}, GetSupportedProviders())
}

func TestGetProviderInfo(t *testing.T) {
	info, err := GetProviderInfo("binance-paper")
	require.NoError(t, err)
	assert.True(t, info.IsPaperTrading)

	info, err = GetProviderInfo("binance-live")
	require.NoError(t, err)
	assert.False(t, info.IsPaperTrading)

	_, err = GetProviderInfo("ibkr")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

//nolint:exhaustruct
func TestNewFactory(t *testing.T) {
	t.Run("paper builds fresh gateways", func(t *testing.T) {
		factory, err := NewFactory(ProviderPaper, FactoryOptions{})
		require.NoError(t, err)

		a, err := factory()
		require.NoError(t, err)
		b, err := factory()
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.IsType(t, &PaperGateway{}, a)
	})

	t.Run("throttled when a budget is set", func(t *testing.T) {
		factory, err := NewFactory(ProviderPaper, FactoryOptions{RequestsPerMinute: 60, Burst: 5})
		require.NoError(t, err)

		gw, err := factory()
		require.NoError(t, err)
		assert.IsType(t, &Throttled{}, gw)
	})

	t.Run("binance requires credentials", func(t *testing.T) {
		_, err := NewFactory(ProviderBinanceLive, FactoryOptions{Binance: DefaultBinanceGatewayConfig()})
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewFactory(ProviderType("fix"), FactoryOptions{})
		assert.Error(t, err)
	})
}

func TestTicket(t *testing.T) {
	//nolint:exhaustruct
	ticket := NewTicket(types.Order{Role: types.OrderRoleEntry})

	_, ok := ticket.WaitForID(context.Background(), 10*time.Millisecond)
	assert.False(t, ok)

	go ticket.AssignID("42")

	id, ok := ticket.WaitForID(context.Background(), time.Second)
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	ticket.AssignID("43")
	assert.Equal(t, "42", ticket.Order().OrderID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	//nolint:exhaustruct
	_, ok = NewTicket(types.Order{}).WaitForID(ctx, time.Second)
	assert.False(t, ok)
}
