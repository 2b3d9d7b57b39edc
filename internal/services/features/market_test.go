package features

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "CredPulse/internal/domain/models"
)

func genBars(closes []float64, volume float64) []models.MarketBar {
    day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
    bars := make([]models.MarketBar, len(closes))
    for i, c := range closes {
        bars[i] = models.MarketBar{EntityID: 1, Day: day.AddDate(0, 0, i), Close: c, Volume: volume}
    }
    return bars
}

func risingCloses(n int, start, step float64) []float64 {
    out := make([]float64, n)
    for i := range out {
        out[i] = start + float64(i)*step
    }
    return out
}

func TestMarketFeaturesEmptyWindowUsesDefaults(t *testing.T) {
    v := MarketFeatures(nil)
    assert.Equal(t, DefaultMarketFeatures(), v)
}

func TestMarketFeaturesRisingSeries(t *testing.T) {
    bars := genBars(risingCloses(31, 100, 1), 1e6)
    v := MarketFeatures(bars)

    assert.Greater(t, v["price_change_30d"], 0.0)
    assert.Greater(t, v["rsi"], 50.0)
    assert.Greater(t, v["moving_avg_ratio"], 1.0)
    assert.Equal(t, 130.0, v["current_price"])
    assert.InDelta(t, 1.0/129.0, v["price_change_1d"], 1e-12)
    // flat volume: no trend
    assert.InDelta(t, 0.0, v["volume_trend"], 1e-12)
}

func TestMarketFeaturesShortHistory(t *testing.T) {
    bars := genBars([]float64{100, 101, 99, 102, 103}, 5e5)
    v := MarketFeatures(bars)

    // horizons the window cannot cover are zeroed
    assert.Equal(t, 0.0, v["price_change_7d"])
    assert.Equal(t, 0.0, v["volatility_7d"])
    assert.Equal(t, 0.0, v["avg_volume_7d"])
    assert.Equal(t, 0.0, v["volume_trend"])
    assert.Equal(t, 50.0, v["rsi"])
    assert.Equal(t, 1.0, v["moving_avg_ratio"])

    // covered horizons still compute
    assert.Equal(t, 5e5, v["avg_volume_30d"])
    assert.InDelta(t, 0.03, v["price_change_30d"], 1e-12)
    assert.Greater(t, v["volatility_30d"], 0.0)
}

func TestMarketFeaturesSingleBar(t *testing.T) {
    v := MarketFeatures(genBars([]float64{42}, 1000))
    assert.Equal(t, 42.0, v["current_price"])
    assert.Equal(t, 0.0, v["price_change_1d"])
    assert.Equal(t, 0.0, v["price_change_30d"])
    assert.Equal(t, 0.0, v["volatility_30d"])
    assert.Equal(t, 0.0, v["avg_volume_30d"])
}

func TestMarketFeaturesVolumeTrend(t *testing.T) {
    closes := risingCloses(20, 50, 0.5)
    bars := genBars(closes, 0)
    for i := range bars {
        if i < len(bars)-7 {
            bars[i].Volume = 1e6
        } else {
            bars[i].Volume = 2e6
        }
    }
    v := MarketFeatures(bars)
    assert.InDelta(t, 1.0, v["volume_trend"], 1e-9)
}

func TestRSI(t *testing.T) {
    tests := []struct {
        name   string
        closes []float64
        want   float64
    }{
        {"insufficient history", risingCloses(10, 100, 1), 50.0},
        {"all gains", risingCloses(20, 100, 1), 100.0},
        {"flat series", func() []float64 {
            out := make([]float64, 20)
            for i := range out {
                out[i] = 100
            }
            return out
        }(), 50.0},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, rsi(tt.closes, rsiWindow))
        })
    }
}

func TestRSIBalancedMoves(t *testing.T) {
    // alternating +2/-1 deltas: avg gain 1.0, avg loss 0.5 over the window
    closes := []float64{100}
    for i := 0; i < 14; i++ {
        last := closes[len(closes)-1]
        if i%2 == 0 {
            closes = append(closes, last+2)
        } else {
            closes = append(closes, last-1)
        }
    }
    got := rsi(closes, rsiWindow)
    require.Greater(t, got, 50.0)
    require.Less(t, got, 100.0)
}

func TestSimpleReturnsGuardsNonPositivePrevious(t *testing.T) {
    rets := simpleReturns([]float64{0, 10, 11})
    require.Len(t, rets, 2)
    assert.Equal(t, 0.0, rets[0])
    assert.InDelta(t, 0.1, rets[1], 1e-12)
}
