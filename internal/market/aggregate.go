package market

import (
	"context"
	"sort"
	"time"

	"tamj/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Aggregator runs one snapshot pass over its symbols.
type Aggregator struct {
	source  Source
	symbols []Symbol
	now     func() time.Time
	logger  *logger.Logger
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func WithSymbols(symbols []Symbol) Option {
	return func(a *Aggregator) { a.symbols = symbols }
}

func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		symbols: Symbols,
		now:     time.Now,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is a snapshot plus which symbols had to fall back.
type Result struct {
	Snapshot  *Snapshot
	Fetched   []string
	Fallbacks []string
}

type fetched struct {
	quote Quote
	ok    bool
}

// Run fetches every fetchable symbol concurrently and builds the next snapshot
// on top of prior, which may be nil. Fetch failures never fail the run: the
// symbol keeps its prior current value, else its baseline, and adds no history.
func (a *Aggregator) Run(ctx context.Context, prior *Snapshot) Result {
	results := make([]fetched, len(a.symbols))
	var g errgroup.Group
	for i, sym := range a.symbols {
		if !sym.Fetchable() {
			continue
		}
		g.Go(func() error {
			q, err := a.source.Quote(ctx, sym.Ticker)
			if err != nil {
				a.logger.Warnw("Quote fetch failed", "symbol", sym.Key, "ticker", sym.Ticker, "error", err)
				return nil
			}
			results[i] = fetched{quote: q, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	baselines := a.baselines(prior)
	current := make(map[string]float64, len(a.symbols))
	histories := make(map[string][]Point, len(a.symbols))
	weights := make(map[string]float64, len(a.symbols))
	var res Result

	for i, sym := range a.symbols {
		weights[sym.Key] = sym.Weight
		if results[i].ok {
			current[sym.Key] = results[i].quote.Current
			histories[sym.Key] = results[i].quote.History
			res.Fetched = append(res.Fetched, sym.Key)
			a.logger.Infow("Quote fetched", "symbol", sym.Key, "value", current[sym.Key])
			continue
		}
		current[sym.Key] = fallback(prior, sym.Key, baselines[sym.Key])
		res.Fallbacks = append(res.Fallbacks, sym.Key)
		a.logger.Infow("Quote fell back", "symbol", sym.Key, "value", current[sym.Key])
	}

	now := a.now().UTC()
	baseDate := DefaultBaseDate
	if prior != nil && prior.BaseDate != "" {
		baseDate = prior.BaseDate
	}
	res.Snapshot = &Snapshot{
		BaseDate:      baseDate,
		FetchDate:     now.Format(dateLayout),
		FetchTime:     now.Format(fetchTimeLayout),
		BaseValues:    baselines,
		CurrentValues: current,
		History30d:    MergeHistory(a.keys(), histories, current, HistoryDays),
		MCI:           CompositeIndex(current, baselines, weights),
		Weights:       weights,
	}
	return res
}

// baselines are carried from prior and never recomputed from market data.
func (a *Aggregator) baselines(prior *Snapshot) map[string]float64 {
	out := make(map[string]float64, len(a.symbols))
	for _, sym := range a.symbols {
		out[sym.Key] = sym.Baseline
		if prior == nil {
			continue
		}
		if v, ok := prior.BaseValues[sym.Key]; ok && v != 0 {
			out[sym.Key] = v
		}
	}
	return out
}

func fallback(prior *Snapshot, key string, baseline float64) float64 {
	if prior != nil {
		if v, ok := prior.CurrentValues[key]; ok && v != 0 {
			return v
		}
	}
	return baseline
}

func (a *Aggregator) keys() []string {
	keys := make([]string, len(a.symbols))
	for i, sym := range a.symbols {
		keys[i] = sym.Key
	}
	return keys
}

// MergeHistory keeps the most recent limit distinct dates seen across all
// histories. Every kept entry carries a value for every key: the fetched close
// when there is one for that date, the key's current value otherwise.
func MergeHistory(keys []string, histories map[string][]Point, current map[string]float64, limit int) []HistoryEntry {
	byKey := make(map[string]map[string]float64, len(histories))
	dates := make(map[string]struct{})
	for key, points := range histories {
		values := make(map[string]float64, len(points))
		for _, p := range points {
			// first close wins on a repeated date
			if _, seen := values[p.Date]; !seen {
				values[p.Date] = p.Value
			}
			dates[p.Date] = struct{}{}
		}
		byKey[key] = values
	}

	sorted := make([]string, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	merged := make([]HistoryEntry, 0, len(sorted))
	for _, d := range sorted {
		entry := HistoryEntry{Date: d, Values: make(map[string]float64, len(keys))}
		for _, key := range keys {
			if v, ok := byKey[key][d]; ok {
				entry.Values[key] = v
			} else {
				entry.Values[key] = current[key]
			}
		}
		merged = append(merged, entry)
	}
	return merged
}

// CompositeIndex is Σ weight × current/baseline, rounded to 4 places. Keys
// with a zero baseline are skipped.
func CompositeIndex(current, baselines, weights map[string]float64) float64 {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mci float64
	for _, k := range keys {
		base := baselines[k]
		if base == 0 {
			continue
		}
		mci += weights[k] * (current[k] / base)
	}
	return round(mci, indexPlaces)
}
