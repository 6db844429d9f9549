// Package market builds the daily market snapshot: five quotes, a merged
// 30-day history and the weighted composite index (MCI) against fixed
// baselines.
package market

import "github.com/shopspring/decimal"

// Symbol is one component of the composite index. A symbol without a ticker
// is never fetched and always resolves to its fallback value.
type Symbol struct {
	Key      string
	Ticker   string
	Baseline float64
	Weight   float64
}

func (s Symbol) Fetchable() bool { return s.Ticker != "" }

// DefaultBaseDate is the date the default baselines were fixed.
const DefaultBaseDate = "2026-02-18"

const (
	HistoryDays     = 30
	quotePlaces     = 3
	indexPlaces     = 4
	dateLayout      = "2006-01-02"
	fetchTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Symbols are the index components. Weights sum to 1.
var Symbols = []Symbol{
	{Key: "nikkei", Ticker: "^N225", Baseline: 27500, Weight: 0.15},
	{Key: "usdjpy", Ticker: "USDJPY=X", Baseline: 131.0, Weight: 0.35},
	{Key: "brent", Ticker: "BZ=F", Baseline: 95.0, Weight: 0.15},
	{Key: "copper", Ticker: "HG=F", Baseline: 4.30, Weight: 0.25},
	// no public instrument for the JGB 10Y yield
	{Key: "jgb10y", Baseline: 0.20, Weight: 0.10},
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
