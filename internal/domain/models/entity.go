package models

import "time"

// Entity is a tracked company being scored. Identity is immutable;
// descriptive attributes are owned by the ingestion side.
type Entity struct {
	ID        int64
	Symbol    string
	Name      string
	Sector    string
	MarketCap float64
}

// FundamentalRecord is one reported financial metric value for an entity.
type FundamentalRecord struct {
	EntityID   int64
	ReportedAt time.Time
	Metric     string // "debt_to_equity", "current_ratio", "pe_ratio", ...
	Value      float64
}

// MarketBar is one daily price/volume observation.
type MarketBar struct {
	EntityID int64
	Day      time.Time
	Close    float64
	Volume   float64
}

// NewsEvent is one scored news item about an entity.
type NewsEvent struct {
	EntityID  int64
	Timestamp time.Time
	Headline  string
	Sentiment float64 // 0-100, 50 = neutral
	Impact    float64 // 0-100
	Category  string  // "financial", "legal", "management", "corporate_action", "general"
}
