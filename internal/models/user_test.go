package models

import (
	"testing"
	"time"
)

func TestDecodePlanRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Plan
	}{
		{"empty", "", PlanFree},
		{"bare pro", "pro", PlanPro},
		{"quoted pro", `"pro"`, PlanPro},
		{"bare free", "free", PlanFree},
		{"checkout object", `{"plan":"annual","price":19800,"date":"2026-01-05"}`, PlanPro},
		{"object without plan", `{"price":19800}`, PlanFree},
		{"versioned free", `{"version":1,"plan":"free"}`, PlanFree},
		{"versioned pro", `{"version":1,"plan":"pro","source":"login"}`, PlanPro},
		{"versioned unknown", `{"version":1,"plan":"annual"}`, PlanFree},
		{"garbage object", `{plan`, PlanFree},
		{"garbage", "gold", PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodePlanRecord(tt.raw); got != tt.want {
				t.Errorf("DecodePlanRecord(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEncodePlanRecordRoundTrip(t *testing.T) {
	at := time.Date(2026, 2, 18, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))
	for _, plan := range []Plan{PlanFree, PlanPro} {
		raw, err := EncodePlanRecord(plan, PlanSourceWebhook, at)
		if err != nil {
			t.Fatalf("EncodePlanRecord() unexpected error = %v", err)
		}
		if got := DecodePlanRecord(raw); got != plan {
			t.Errorf("DecodePlanRecord(EncodePlanRecord(%q)) = %q", plan, got)
		}
	}
}

func TestUserName(t *testing.T) {
	if got := (User{Email: "demo@tamj.jp"}).Name(); got != "demo" {
		t.Errorf("Name() = %q, want demo", got)
	}
	if got := (User{Email: "demo@tamj.jp", DisplayName: "Demo"}).Name(); got != "Demo" {
		t.Errorf("Name() = %q, want Demo", got)
	}
}
