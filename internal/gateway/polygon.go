package gateway

import (
	"context"
	"slices"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// PolygonAggsIterator iterates aggregate bars.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient abstracts the Polygon REST client for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator
}

type realPolygonAPIClient struct {
	client *polygon.Client
}

func (c *realPolygonAPIClient) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params, opts...)
}

// PolygonBars serves historical bars from Polygon aggregates.
type PolygonBars struct {
	apiClient PolygonAPIClient
	// lookback is how far back a request reaches per requested bar; markets close, so it is generous.
	lookback int
	now      func() time.Time
}

// NewPolygonBars creates a bar source backed by the Polygon REST API.
func NewPolygonBars(apiKey string) (*PolygonBars, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return NewPolygonBarsWithAPI(&realPolygonAPIClient{client: polygon.New(apiKey)}), nil
}

// NewPolygonBarsWithAPI creates a bar source with a custom client.
func NewPolygonBarsWithAPI(apiClient PolygonAPIClient) *PolygonBars {
	return &PolygonBars{apiClient: apiClient, lookback: 4, now: time.Now}
}

// Bars returns up to count most recent bars, oldest first.
func (p *PolygonBars) Bars(ctx context.Context, symbol string, barSize time.Duration, count int) ([]types.MarketData, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar count must be positive, got %d", count)
	}

	multiplier, timespan, err := durationToPolygonTimespan(barSize)
	if err != nil {
		return nil, err
	}

	end := p.now()
	start := end.Add(-time.Duration(count*p.lookback) * barSize)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Desc).WithLimit(count)

	iter := p.apiClient.ListAggs(ctx, params)

	bars := make([]types.MarketData, 0, count)
	for iter.Next() && len(bars) < count {
		agg := iter.Item()
		bars = append(bars, types.MarketData{
			Id:     "",
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoricalDataFailed, iter.Err(), "failed to list polygon aggregates for %s", symbol)
	}

	slices.Reverse(bars)

	return bars, nil
}

func durationToPolygonTimespan(d time.Duration) (int, models.Timespan, error) {
	switch {
	case d <= 0:
		return 0, "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported bar size %s", d)
	case d%(24*time.Hour) == 0:
		return int(d / (24 * time.Hour)), models.Day, nil
	case d%time.Hour == 0:
		return int(d / time.Hour), models.Hour, nil
	case d%time.Minute == 0:
		return int(d / time.Minute), models.Minute, nil
	case d%time.Second == 0:
		return int(d / time.Second), models.Second, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported bar size %s", d)
	}
}

var _ BarSource = (*PolygonBars)(nil)
