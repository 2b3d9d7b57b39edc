package features

import (
    "math"

    "CredPulse/internal/domain/models"
)

// FundamentalFeatures converts the fundamentals window into its sub-vector.
// Records are expected newest first; the most recent value wins per metric.
// An empty window yields the documented default sub-vector.
func FundamentalFeatures(records []models.FundamentalRecord) models.FeatureVector {
    if len(records) == 0 {
        return DefaultFundamentalFeatures()
    }

    latest := make(map[string]float64, len(metricFallbacks))
    for _, rec := range records {
        if _, seen := latest[rec.Metric]; !seen {
            latest[rec.Metric] = rec.Value
        }
    }

    v := make(models.FeatureVector, len(fundamentalKeys))
    for metric, fallback := range metricFallbacks {
        if val, ok := latest[metric]; ok {
            v[metric] = val
        } else {
            v[metric] = fallback
        }
    }

    // Derived ratios, guarded against zero/negative denominators.
    if rev := v["total_revenue"]; rev > 0 {
        v["profit_margin"] = v["net_income"] / rev
        v["gross_margin"] = v["gross_profit"] / rev
    } else {
        v["profit_margin"] = 0
        v["gross_margin"] = 0
    }
    if assets := v["total_assets"]; assets > 0 {
        v["asset_turnover"] = v["total_revenue"] / assets
    } else {
        v["asset_turnover"] = 0
    }

    // Log transform for size metrics, guarded by positivity.
    for _, metric := range logMagnitudeKeys {
        if val := v[metric]; val > 0 {
            v["log_"+metric] = math.Log(val)
        } else {
            v["log_"+metric] = 0
        }
    }

    return v
}
