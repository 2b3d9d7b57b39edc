package repository

import "time"

// Lookback bounds the read windows used by feature extraction.
type Lookback struct {
	FundamentalsDays int
	MarketDays       int
	NewsDays         int
}

// DefaultLookback returns the standard extraction windows.
func DefaultLookback() Lookback {
	return Lookback{FundamentalsDays: 90, MarketDays: 30, NewsDays: 7}
}

// Normalize replaces non-positive windows with the defaults.
func (lb Lookback) Normalize() Lookback {
	def := DefaultLookback()
	if lb.FundamentalsDays <= 0 {
		lb.FundamentalsDays = def.FundamentalsDays
	}
	if lb.MarketDays <= 0 {
		lb.MarketDays = def.MarketDays
	}
	if lb.NewsDays <= 0 {
		lb.NewsDays = def.NewsDays
	}
	return lb
}

// FundamentalsFrom returns the start of the fundamentals window ending at t.
func (lb Lookback) FundamentalsFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, -lb.FundamentalsDays)
}

// MarketFrom returns the start of the market window ending at t.
func (lb Lookback) MarketFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, -lb.MarketDays)
}

// NewsFrom returns the start of the news window ending at t.
func (lb Lookback) NewsFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, -lb.NewsDays)
}
