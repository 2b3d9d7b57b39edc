package features

import (
    "math"
    "time"

    "CredPulse/internal/domain/models"
    "CredPulse/pkg/util"
)

const defaultMarketCap = 1e9

var sectorCodes = map[string]float64{
    "Technology":         1,
    "Financial Services": 2,
    "Healthcare":         3,
    "Consumer Cyclical":  4,
    "Consumer Defensive": 5,
    "Energy":             6,
    "Utilities":          7,
    "Real Estate":        8,
    "Materials":          9,
    "Industrials":        10,
}

// ContextFeatures builds the entity/calendar sub-vector for the extraction
// instant. Unknown sectors code to 0; a missing market cap falls back to the
// default before the log transform.
func ContextFeatures(ent models.Entity, at time.Time) models.FeatureVector {
    mc := ent.MarketCap
    if mc <= 0 {
        mc = defaultMarketCap
    }
    return models.FeatureVector{
        "sector_code":    sectorCodes[ent.Sector],
        "market_cap_log": math.Log(mc),
        "day_of_week":    float64(util.WeekdayMonday0(at)),
        "month":          float64(int(at.Month())),
        "quarter":        float64(util.QuarterOf(at)),
    }
}
