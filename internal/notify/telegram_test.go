package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tamj/internal/market"
	"tamj/pkg/logger"
)

func testResult() market.Result {
	return market.Result{
		Snapshot: &market.Snapshot{
			BaseDate:      "2026-02-18",
			FetchDate:     "2026-03-02",
			CurrentValues: map[string]float64{"usdjpy": 150.123, "jgb10y": 0.2},
			MCI:           1.0234,
		},
		Fallbacks: []string{"jgb10y"},
	}
}

func TestFormatSnapshot(t *testing.T) {
	got := FormatSnapshot(testResult())
	want := "📊 MCI 1.0234 (+2.3%)\n2026-03-02 (基準日 2026-02-18)\njgb10y 0.2 (fallback)\nusdjpy 150.123"
	if got != want {
		t.Errorf("FormatSnapshot() =\n%s\nwant\n%s", got, want)
	}
}

func TestSendSnapshot(t *testing.T) {
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tamj","username":"tamj_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm() error = %v", err)
			}
			if r.FormValue("chat_id") != "42" {
				t.Errorf("chat_id = %q, want 42", r.FormValue("chat_id"))
			}
			sent = r.FormValue("text")
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":42,"type":"private"},"date":0}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegramWithEndpoint("token", srv.URL+"/bot%s/%s", 42, logger.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramWithEndpoint() unexpected error = %v", err)
	}
	if err := tg.SendSnapshot(context.Background(), testResult()); err != nil {
		t.Fatalf("SendSnapshot() unexpected error = %v", err)
	}
	if !strings.HasPrefix(sent, "📊 MCI 1.0234") {
		t.Errorf("sent text = %q", sent)
	}
}
