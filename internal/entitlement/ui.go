package entitlement

import (
	"context"
	"fmt"

	"tamj/internal/models"
)

type Reason string

const (
	ReasonLimit Reason = "limit"
	ReasonPro   Reason = "pro"
)

// UpgradePrompt is the modal shown when a gate refuses.
type UpgradePrompt struct {
	Reason  Reason `json:"reason"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
	CTA     string `json:"cta"`
	CTAURL  string `json:"ctaUrl"`
}

const (
	limitTitle   = "今月の無料枠を使い切りました"
	limitMessage = "Freeプランは月%d回までシミュレーションを実行できます。Proプランにアップグレードすると無制限でご利用いただけます。"
	proTitle     = "Pro プラン限定機能です"
	proMessage   = "この機能はProプラン限定です。Proプランにアップグレードすると、PDF出力・財務設計・スキーム構造設計などすべての機能をご利用いただけます。"
	promptCTA    = "Proで始める — ¥1,650/月〜"

	overlayTitle    = "Pro プラン限定機能"
	overlaySubtitle = "アップグレードですべての機能をご利用いただけます"
	overlayCTA      = "Proで始める →"
)

func (m *Machine) prompt(reason Reason, used int) *UpgradePrompt {
	p := &UpgradePrompt{
		Reason: reason,
		Used:   used,
		Limit:  FreeMonthlyLimit,
		CTA:    promptCTA,
		CTAURL: m.upgradeURL,
	}
	if reason == ReasonLimit {
		p.Title = limitTitle
		p.Message = fmt.Sprintf(limitMessage, FreeMonthlyLimit)
	} else {
		p.Title = proTitle
		p.Message = proMessage
	}
	return p
}

// Badge is the plan indicator in the page header.
type Badge struct {
	Plan      models.Plan `json:"plan"`
	Label     string      `json:"label"`
	Remaining int         `json:"remaining"`
	Limit     int         `json:"limit"`
}

func (m *Machine) Badge(ctx context.Context) (Badge, error) {
	remaining, err := m.RemainingUses(ctx)
	if err != nil {
		return Badge{}, err
	}
	if remaining == Unlimited {
		return Badge{Plan: models.PlanPro, Label: "PRO", Remaining: Unlimited}, nil
	}
	return Badge{
		Plan:      models.PlanFree,
		Label:     fmt.Sprintf("FREE 残り %d/%d回", remaining, FreeMonthlyLimit),
		Remaining: remaining,
		Limit:     FreeMonthlyLimit,
	}, nil
}

// Overlay covers a locked region. It has no dismiss action: only upgrading
// removes it.
type Overlay struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	CTA      string `json:"cta"`
	CTAURL   string `json:"ctaUrl"`
}

type Region struct {
	ID      string   `json:"id"`
	Locked  bool     `json:"locked"`
	Overlay *Overlay `json:"overlay,omitempty"`
}

// Region describes how a pro-restricted region renders for the current plan.
func (m *Machine) Region(ctx context.Context, id string) (Region, error) {
	pro, err := m.IsPro(ctx)
	if err != nil {
		return Region{}, err
	}
	if pro {
		return Region{ID: id}, nil
	}
	return Region{
		ID:     id,
		Locked: true,
		Overlay: &Overlay{
			Title:    overlayTitle,
			Subtitle: overlaySubtitle,
			CTA:      overlayCTA,
			CTAURL:   m.upgradeURL,
		},
	}, nil
}

// Activate runs a pro-restricted action. For anyone not on pro the action is
// not called and the upgrade prompt is returned instead.
func (m *Machine) Activate(ctx context.Context, action func(context.Context) error) (*UpgradePrompt, error) {
	pro, err := m.IsPro(ctx)
	if err != nil {
		return nil, err
	}
	if !pro {
		used, err := m.UsageCount(ctx)
		if err != nil {
			return nil, err
		}
		return m.prompt(ReasonPro, used), nil
	}
	return nil, action(ctx)
}
