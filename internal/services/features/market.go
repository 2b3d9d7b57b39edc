package features

import (
    "gonum.org/v1/gonum/stat"

    "CredPulse/internal/domain/models"
)

const rsiWindow = 14

// MarketFeatures converts the market window into its sub-vector.
// Bars are expected in ascending day order. An empty window yields the
// documented default sub-vector; a short window zeroes the features whose
// horizon it cannot cover.
func MarketFeatures(bars []models.MarketBar) models.FeatureVector {
    if len(bars) == 0 {
        return DefaultMarketFeatures()
    }

    n := len(bars)
    closes := make([]float64, n)
    volumes := make([]float64, n)
    for i, b := range bars {
        closes[i] = b.Close
        volumes[i] = b.Volume
    }
    cur := closes[n-1]

    v := make(models.FeatureVector, len(marketKeys))
    v["current_price"] = cur

    v["price_change_1d"] = 0.0
    if n > 1 && closes[n-2] > 0 {
        v["price_change_1d"] = (cur - closes[n-2]) / closes[n-2]
    }
    v["price_change_7d"] = 0.0
    if n > 7 && closes[n-7] > 0 {
        v["price_change_7d"] = (cur - closes[n-7]) / closes[n-7]
    }
    v["price_change_30d"] = 0.0
    if n > 1 && closes[0] > 0 {
        v["price_change_30d"] = (cur - closes[0]) / closes[0]
    }

    returns := simpleReturns(closes)
    v["volatility_7d"] = 0.0
    if n > 7 {
        v["volatility_7d"] = stat.StdDev(tail(returns, 7), nil)
    }
    v["volatility_30d"] = 0.0
    if len(returns) >= 2 {
        v["volatility_30d"] = stat.StdDev(returns, nil)
    }

    v["avg_volume_7d"] = 0.0
    if n > 7 {
        v["avg_volume_7d"] = stat.Mean(tail(volumes, 7), nil)
    }
    v["avg_volume_30d"] = 0.0
    if n > 1 {
        v["avg_volume_30d"] = stat.Mean(volumes, nil)
    }
    v["volume_trend"] = 0.0
    if n > 14 {
        early := stat.Mean(volumes[:7], nil)
        if early > 0 {
            v["volume_trend"] = stat.Mean(tail(volumes, 7), nil)/early - 1
        }
    }

    v["rsi"] = rsi(closes, rsiWindow)
    v["moving_avg_ratio"] = 1.0
    if n > 20 {
        if ma := stat.Mean(tail(closes, 20), nil); ma > 0 {
            v["moving_avg_ratio"] = cur / ma
        }
    }

    return v
}

// simpleReturns computes r_t = P_t/P_{t-1} - 1 with zero substituted where
// the previous close is not positive.
func simpleReturns(closes []float64) []float64 {
    if len(closes) < 2 {
        return nil
    }
    out := make([]float64, 0, len(closes)-1)
    for i := 1; i < len(closes); i++ {
        prev := closes[i-1]
        if prev <= 0 {
            out = append(out, 0)
            continue
        }
        out = append(out, closes[i]/prev-1)
    }
    return out
}

// rsi computes the relative strength index over the last `window` deltas,
// mapped via 100 - 100/(1+RS). Neutral 50 when history is insufficient or
// the window is flat; 100 when there are gains and no losses.
func rsi(closes []float64, window int) float64 {
    if len(closes) < window+1 {
        return 50.0
    }
    var gain, loss float64
    for i := len(closes) - window; i < len(closes); i++ {
        d := closes[i] - closes[i-1]
        if d > 0 {
            gain += d
        } else {
            loss -= d
        }
    }
    avgGain := gain / float64(window)
    avgLoss := loss / float64(window)
    if avgLoss == 0 {
        if avgGain == 0 {
            return 50.0
        }
        return 100.0
    }
    rs := avgGain / avgLoss
    return 100 - 100/(1+rs)
}

func tail(xs []float64, n int) []float64 {
    if len(xs) <= n {
        return xs
    }
    return xs[len(xs)-n:]
}
