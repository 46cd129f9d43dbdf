package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	pkgerrors "github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	iterator PolygonAggsIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params

	return m.iterator
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++

		return true
	}

	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	if m.index > 0 && m.index <= len(m.aggs) {
		return m.aggs[m.index-1]
	}

	return models.Agg{} //nolint:exhaustruct
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonBarsTestSuite struct {
	suite.Suite
}

func TestPolygonBarsSuite(t *testing.T) {
	suite.Run(t, new(PolygonBarsTestSuite))
}

func (suite *PolygonBarsTestSuite) TestNewPolygonBars_EmptyApiKey() {
	bars, err := NewPolygonBars("")
	suite.Nil(bars)
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMissingParameter))
}

func (suite *PolygonBarsTestSuite) TestNewPolygonBars_ValidApiKey() {
	bars, err := NewPolygonBars("test-api-key")
	suite.NoError(err)
	suite.NotNil(bars.apiClient)
}

//nolint:exhaustruct
func (suite *PolygonBarsTestSuite) TestBars_NewestFirstIsReversed() {
	t0 := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{aggs: []models.Agg{
		{Timestamp: models.Millis(t0.Add(2 * time.Minute)), Close: 102},
		{Timestamp: models.Millis(t0.Add(time.Minute)), Close: 101},
		{Timestamp: models.Millis(t0), Close: 100},
	}}}

	source := NewPolygonBarsWithAPI(api)
	source.now = func() time.Time { return t0.Add(3 * time.Minute) }

	bars, err := source.Bars(context.Background(), "SPY", time.Minute, 3)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 3)
	suite.Equal(100.0, bars[0].Close)
	suite.Equal(102.0, bars[2].Close)
	suite.Equal("SPY", bars[0].Symbol)

	suite.Equal(models.Minute, api.params.Timespan)
	suite.Equal(1, api.params.Multiplier)
	suite.Equal(models.Desc, *api.params.Order)
	suite.Equal(3, *api.params.Limit)
}

func (suite *PolygonBarsTestSuite) TestBars_IteratorError() {
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{aggs: nil, index: 0, err: errors.New("rate limited")}}

	_, err := NewPolygonBarsWithAPI(api).Bars(context.Background(), "SPY", time.Minute, 5)
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeHistoricalDataFailed))
}

func (suite *PolygonBarsTestSuite) TestBars_InvalidArguments() {
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{aggs: nil, index: 0, err: nil}}
	source := NewPolygonBarsWithAPI(api)

	_, err := source.Bars(context.Background(), "SPY", time.Minute, 0)
	suite.Error(err)

	_, err = source.Bars(context.Background(), "SPY", 1500*time.Millisecond, 1)
	suite.Error(err)
}

func (suite *PolygonBarsTestSuite) TestDurationToPolygonTimespan() {
	tests := []struct {
		in         time.Duration
		multiplier int
		timespan   models.Timespan
	}{
		{time.Second, 1, models.Second},
		{5 * time.Minute, 5, models.Minute},
		{2 * time.Hour, 2, models.Hour},
		{24 * time.Hour, 1, models.Day},
	}

	for _, tc := range tests {
		m, ts, err := durationToPolygonTimespan(tc.in)
		suite.Require().NoError(err)
		suite.Equal(tc.multiplier, m, tc.in.String())
		suite.Equal(tc.timespan, ts, tc.in.String())
	}
}
