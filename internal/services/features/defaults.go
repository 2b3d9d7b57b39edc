package features

import "CredPulse/internal/domain/models"

// Feature keys per group, in canonical order. The extractor always emits
// every key of every group; the documented defaults below fill whatever the
// source data cannot.

var fundamentalKeys = []string{
    "debt_to_equity", "current_ratio", "pe_ratio", "roe", "revenue_growth",
    "market_cap", "total_revenue", "total_assets",
    "gross_profit", "net_income", "ebitda",
    "profit_margin", "gross_margin", "asset_turnover",
    "log_market_cap", "log_total_revenue", "log_total_assets",
    "log_gross_profit", "log_net_income", "log_ebitda",
}

var marketKeys = []string{
    "current_price", "price_change_1d", "price_change_7d", "price_change_30d",
    "volatility_7d", "volatility_30d",
    "avg_volume_7d", "avg_volume_30d", "volume_trend",
    "rsi", "moving_avg_ratio",
}

var sentimentKeys = []string{
    "avg_sentiment_7d", "sentiment_trend", "sentiment_volatility",
    "avg_impact_7d", "max_impact_7d", "high_impact_events",
    "financial_events", "legal_events", "management_events", "corporate_action_events",
    "news_frequency_7d",
}

var contextKeys = []string{
    "sector_code", "market_cap_log", "day_of_week", "month", "quarter",
}

// logMagnitudeKeys are the size metrics that get a guarded natural-log copy.
var logMagnitudeKeys = []string{
    "market_cap", "total_revenue", "total_assets", "gross_profit", "net_income", "ebitda",
}

// metricFallbacks fill individual fundamentals metrics that are missing from
// an otherwise non-empty window.
var metricFallbacks = map[string]float64{
    "debt_to_equity": 0,
    "current_ratio":  1,
    "pe_ratio":       15,
    "roe":            0.1,
    "revenue_growth": 0,
    "market_cap":     1e9,
    "total_revenue":  1e9,
    "total_assets":   1e9,
    "gross_profit":   1e8,
    "net_income":     5e7,
    "ebitda":         1e8,
}

// DefaultFundamentalFeatures is the full fundamentals sub-vector used when no
// fundamentals exist in the lookback window.
func DefaultFundamentalFeatures() models.FeatureVector {
    return models.FeatureVector{
        "debt_to_equity":    0.5,
        "current_ratio":     1.2,
        "pe_ratio":          15.0,
        "roe":               0.1,
        "revenue_growth":    0.05,
        "market_cap":        1e9,
        "total_revenue":     1e9,
        "total_assets":      1e9,
        "gross_profit":      2e8,
        "net_income":        5e7,
        "ebitda":            1.5e8,
        "profit_margin":     0.05,
        "gross_margin":      0.2,
        "asset_turnover":    1.0,
        "log_market_cap":    20.7,
        "log_total_revenue": 20.7,
        "log_total_assets":  20.7,
        "log_gross_profit":  19.1,
        "log_net_income":    17.7,
        "log_ebitda":        18.8,
    }
}

// DefaultMarketFeatures is the full market sub-vector used when no bars exist
// in the lookback window.
func DefaultMarketFeatures() models.FeatureVector {
    return models.FeatureVector{
        "current_price":    100.0,
        "price_change_1d":  0.0,
        "price_change_7d":  0.0,
        "price_change_30d": 0.0,
        "volatility_7d":    0.02,
        "volatility_30d":   0.02,
        "avg_volume_7d":    1e6,
        "avg_volume_30d":   1e6,
        "volume_trend":     0.0,
        "rsi":              50.0,
        "moving_avg_ratio": 1.0,
    }
}

// DefaultSentimentFeatures is the full sentiment sub-vector used when no news
// exists in the lookback window.
func DefaultSentimentFeatures() models.FeatureVector {
    return models.FeatureVector{
        "avg_sentiment_7d":        50.0,
        "sentiment_trend":         0.0,
        "sentiment_volatility":    5.0,
        "avg_impact_7d":           30.0,
        "max_impact_7d":           50.0,
        "high_impact_events":      0,
        "financial_events":        0,
        "legal_events":            0,
        "management_events":       0,
        "corporate_action_events": 0,
        "news_frequency_7d":       0,
    }
}
