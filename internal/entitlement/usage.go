package entitlement

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9]`)

// UsageKey is the slot counting gated actions for one user in the month of at.
func UsageKey(email string, at time.Time) string {
	uid := "anon"
	if email != "" {
		uid = unsafeKeyChars.ReplaceAllString(strings.ToLower(email), "_")
	}
	return fmt.Sprintf("%s%s_%d-%02d", usagePrefix, uid, at.Year(), int(at.Month()))
}

func (m *Machine) usageKey(ctx context.Context) (string, error) {
	user, err := m.Session(ctx)
	if err != nil {
		return "", err
	}
	email := ""
	if user != nil {
		email = user.Email
	}
	return UsageKey(email, m.now()), nil
}

// UsageCount is the number of gated actions this month. A missing slot counts
// as zero, a garbled one as the whole allowance.
func (m *Machine) UsageCount(ctx context.Context) (int, error) {
	key, err := m.usageKey(ctx)
	if err != nil {
		return 0, err
	}
	return m.usageAt(ctx, key)
}

func (m *Machine) usageAt(ctx context.Context, key string) (int, error) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		// an unreadable counter counts as spent
		m.logger.Warnw("Unreadable usage counter", "key", key, "value", raw)
		return FreeMonthlyLimit, nil
	}
	return n, nil
}

// RemainingUses returns Unlimited for pro.
func (m *Machine) RemainingUses(ctx context.Context) (int, error) {
	pro, err := m.IsPro(ctx)
	if err != nil {
		return 0, err
	}
	if pro {
		return Unlimited, nil
	}
	used, err := m.UsageCount(ctx)
	if err != nil {
		return 0, err
	}
	return max(0, FreeMonthlyLimit-used), nil
}

type GateResult struct {
	Allowed   bool           `json:"allowed"`
	Used      int            `json:"used"`
	Remaining int            `json:"remaining"`
	Prompt    *UpgradePrompt `json:"prompt,omitempty"`
}

// CheckUsageGate is run before each metered action. Pro always passes and is
// never counted. Free passes while fewer than FreeMonthlyLimit actions were
// used this month, spending one; past that it is refused with a limit prompt
// and nothing is counted.
func (m *Machine) CheckUsageGate(ctx context.Context) (GateResult, error) {
	pro, err := m.IsPro(ctx)
	if err != nil {
		return GateResult{}, err
	}
	if pro {
		return GateResult{Allowed: true, Remaining: Unlimited}, nil
	}

	key, err := m.usageKey(ctx)
	if err != nil {
		return GateResult{}, err
	}
	used, err := m.usageAt(ctx, key)
	if err != nil {
		return GateResult{}, err
	}
	if used >= FreeMonthlyLimit {
		return GateResult{Used: used, Prompt: m.prompt(ReasonLimit, used)}, nil
	}

	used++
	if err := m.store.Set(ctx, key, strconv.Itoa(used)); err != nil {
		return GateResult{}, fmt.Errorf("failed to save usage: %w", err)
	}
	return GateResult{Allowed: true, Used: used, Remaining: FreeMonthlyLimit - used}, nil
}
