package market

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

type fakeSource map[string]Quote

func (f fakeSource) Quote(_ context.Context, ticker string) (Quote, error) {
	q, ok := f[ticker]
	if !ok {
		return Quote{}, errors.New("unavailable")
	}
	return q, nil
}

func days(n int, value float64) []Point {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Date: start.AddDate(0, 0, i).Format(dateLayout), Value: value + float64(i)}
	}
	return points
}

var fixedNow = time.Date(2026, 3, 2, 21, 5, 7, 123_000_000, time.UTC)

func TestRunMergesMostRecentDates(t *testing.T) {
	src := fakeSource{
		"^N225":    {Current: 38000, History: days(35, 37000)},
		"USDJPY=X": {Current: 150.5, History: days(35, 140)},
		"BZ=F":     {Current: 80.1, History: days(35, 70)},
	}
	res := NewAggregator(src, WithClock(func() time.Time { return fixedNow })).Run(context.Background(), nil)
	s := res.Snapshot

	if len(s.History30d) != HistoryDays {
		t.Fatalf("len(History30d) = %d, want %d", len(s.History30d), HistoryDays)
	}
	if got, want := s.History30d[0].Date, days(35, 0)[5].Date; got != want {
		t.Errorf("first kept date = %s, want %s", got, want)
	}
	for _, e := range s.History30d {
		if len(e.Values) != len(Symbols) {
			t.Fatalf("entry %s has %d values, want %d", e.Date, len(e.Values), len(Symbols))
		}
	}
	last := s.History30d[HistoryDays-1]
	if last.Values["nikkei"] != 37034 {
		t.Errorf("nikkei on %s = %v, want fetched close", last.Date, last.Values["nikkei"])
	}
	if last.Values["copper"] != 4.30 || last.Values["jgb10y"] != 0.20 {
		t.Errorf("fallback symbols not backfilled with current: %+v", last.Values)
	}

	if !reflect.DeepEqual(res.Fallbacks, []string{"copper", "jgb10y"}) {
		t.Errorf("Fallbacks = %v", res.Fallbacks)
	}
	if s.FetchDate != "2026-03-02" || s.FetchTime != "2026-03-02T21:05:07.123Z" {
		t.Errorf("fetch date/time = %s %s", s.FetchDate, s.FetchTime)
	}
	if s.BaseDate != DefaultBaseDate {
		t.Errorf("BaseDate = %s, want %s", s.BaseDate, DefaultBaseDate)
	}
}

func TestRunFallsBackToPriorCurrent(t *testing.T) {
	prior := &Snapshot{
		BaseDate:      "2025-12-01",
		BaseValues:    map[string]float64{"nikkei": 30000, "usdjpy": 140, "brent": 90, "copper": 4, "jgb10y": 0.3},
		CurrentValues: map[string]float64{"copper": 4.55, "jgb10y": 1.1},
	}
	res := NewAggregator(fakeSource{}).Run(context.Background(), prior)
	s := res.Snapshot

	if s.CurrentValues["copper"] != 4.55 || s.CurrentValues["jgb10y"] != 1.1 {
		t.Errorf("fallback ignored prior current: %+v", s.CurrentValues)
	}
	if s.CurrentValues["nikkei"] != 30000 {
		t.Errorf("nikkei = %v, want prior baseline", s.CurrentValues["nikkei"])
	}
	if !reflect.DeepEqual(s.BaseValues, prior.BaseValues) || s.BaseDate != "2025-12-01" {
		t.Errorf("baselines drifted: %s %+v", s.BaseDate, s.BaseValues)
	}
	if len(s.History30d) != 0 {
		t.Errorf("History30d = %d entries with nothing fetched", len(s.History30d))
	}
}

func TestCompositeIndex(t *testing.T) {
	got := CompositeIndex(
		map[string]float64{"a": 110, "b": 180},
		map[string]float64{"a": 100, "b": 200},
		map[string]float64{"a": 0.6, "b": 0.4},
	)
	if got != 1.02 {
		t.Errorf("CompositeIndex() = %v, want 1.02", got)
	}
}

func TestRunWithCustomSymbols(t *testing.T) {
	symbols := []Symbol{
		{Key: "a", Ticker: "A", Baseline: 100, Weight: 0.6},
		{Key: "b", Ticker: "B", Baseline: 200, Weight: 0.4},
	}
	src := fakeSource{"A": {Current: 110}, "B": {Current: 180}}
	s := NewAggregator(src, WithSymbols(symbols)).Run(context.Background(), nil).Snapshot

	if s.MCI != 1.02 {
		t.Errorf("MCI = %v, want 1.02", s.MCI)
	}
	if !reflect.DeepEqual(s.Weights, map[string]float64{"a": 0.6, "b": 0.4}) {
		t.Errorf("Weights = %v", s.Weights)
	}
	if !reflect.DeepEqual(s.BaseValues, map[string]float64{"a": 100, "b": 200}) {
		t.Errorf("BaseValues = %v", s.BaseValues)
	}
}

func TestCompositeIndexAtBaseline(t *testing.T) {
	current := make(map[string]float64)
	baselines := make(map[string]float64)
	weights := make(map[string]float64)
	for _, s := range Symbols {
		current[s.Key], baselines[s.Key], weights[s.Key] = s.Baseline, s.Baseline, s.Weight
	}
	if got := CompositeIndex(current, baselines, weights); got != 1 {
		t.Errorf("CompositeIndex() at baseline = %v, want 1", got)
	}
}

func TestRunIsIdempotentOnBaselines(t *testing.T) {
	src := fakeSource{"^N225": {Current: 38000, History: days(3, 37000)}}
	agg := NewAggregator(src, WithClock(func() time.Time { return fixedNow }))

	first := agg.Run(context.Background(), nil).Snapshot
	second := agg.Run(context.Background(), first).Snapshot
	for _, pair := range [][2]any{
		{first.BaseValues, second.BaseValues},
		{first.Weights, second.Weights},
	} {
		a, _ := jsonBytes(pair[0])
		b, _ := jsonBytes(pair[1])
		if a != b {
			t.Errorf("second run changed %s to %s", a, b)
		}
	}
	if first.MCI != second.MCI {
		t.Errorf("MCI moved from %v to %v with identical quotes", first.MCI, second.MCI)
	}
}

func TestMergeHistoryFirstCloseWins(t *testing.T) {
	merged := MergeHistory(
		[]string{"a"},
		map[string][]Point{"a": {{"2026-01-02", 1}, {"2026-01-02", 2}}},
		map[string]float64{"a": 9},
		HistoryDays,
	)
	if len(merged) != 1 || merged[0].Values["a"] != 1 {
		t.Errorf("MergeHistory() = %+v", merged)
	}
}

func ExampleCompositeIndex() {
	fmt.Println(CompositeIndex(
		map[string]float64{"usdjpy": 144.1},
		map[string]float64{"usdjpy": 131},
		map[string]float64{"usdjpy": 1},
	))
	// Output: 1.1
}
