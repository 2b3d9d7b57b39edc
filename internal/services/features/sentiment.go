package features

import (
    "gonum.org/v1/gonum/stat"

    "CredPulse/internal/domain/models"
)

const highImpactThreshold = 70

// SentimentFeatures converts the news window into its sub-vector.
// Events are expected newest first. An empty window yields the documented
// neutral default sub-vector.
func SentimentFeatures(events []models.NewsEvent) models.FeatureVector {
    if len(events) == 0 {
        return DefaultSentimentFeatures()
    }

    n := len(events)
    sentiments := make([]float64, n)
    impacts := make([]float64, n)
    for i, ev := range events {
        sentiments[i] = ev.Sentiment
        impacts[i] = ev.Impact
    }

    v := make(models.FeatureVector, len(sentimentKeys))
    v["avg_sentiment_7d"] = stat.Mean(sentiments, nil)
    v["sentiment_trend"] = sentimentTrend(sentiments)
    v["sentiment_volatility"] = 0.0
    if n >= 2 {
        v["sentiment_volatility"] = stat.StdDev(sentiments, nil)
    }

    v["avg_impact_7d"] = stat.Mean(impacts, nil)
    maxImpact := impacts[0]
    high := 0
    for _, imp := range impacts {
        if imp > maxImpact {
            maxImpact = imp
        }
        if imp > highImpactThreshold {
            high++
        }
    }
    v["max_impact_7d"] = maxImpact
    v["high_impact_events"] = float64(high)

    counts := map[string]int{}
    for _, ev := range events {
        counts[ev.Category]++
    }
    v["financial_events"] = float64(counts["financial"])
    v["legal_events"] = float64(counts["legal"])
    v["management_events"] = float64(counts["management"])
    v["corporate_action_events"] = float64(counts["corporate_action"])

    v["news_frequency_7d"] = float64(n)
    return v
}

// sentimentTrend compares the mean of the newest third of events against the
// mean of the oldest third. Requires at least 6 events, otherwise 0.
// Input is ordered newest first.
func sentimentTrend(sentiments []float64) float64 {
    n := len(sentiments)
    if n < 6 {
        return 0
    }
    k := n / 3
    newest := stat.Mean(sentiments[:k], nil)
    oldest := stat.Mean(sentiments[n-k:], nil)
    return newest - oldest
}
