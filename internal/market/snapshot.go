package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is the persisted document consumed by the site.
type Snapshot struct {
	BaseDate      string             `json:"baseDate"`
	FetchDate     string             `json:"fetchDate"`
	FetchTime     string             `json:"fetchTime"`
	BaseValues    map[string]float64 `json:"baseValues"`
	CurrentValues map[string]float64 `json:"currentValues"`
	History30d    []HistoryEntry     `json:"history30d"`
	MCI           float64            `json:"mci"`
	Weights       map[string]float64 `json:"weights"`
}

// HistoryEntry is one merged day: a value for every symbol.
// It encodes flat, as {"date": ..., "<symbol>": ...}. Decoding keeps only the
// numeric fields.
type HistoryEntry struct {
	Date   string
	Values map[string]float64
}

func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	date, err := json.Marshal(e.Date)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"date":`)
	buf.Write(date)

	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Values[k])
		if err != nil {
			return nil, fmt.Errorf("history %s %s: %w", e.Date, k, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.Date = ""
	e.Values = make(map[string]float64, len(fields))
	for k, raw := range fields {
		if k == "date" {
			if err := json.Unmarshal(raw, &e.Date); err != nil {
				return fmt.Errorf("history date: %w", err)
			}
			continue
		}
		// fields that are not quotes are dropped rather than failing the document
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		e.Values[k] = v
	}
	return nil
}
