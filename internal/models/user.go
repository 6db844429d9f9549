// internal/models/user.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the signed-in session identity.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Name returns the display name, or the local part of the email.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Account is a directory entry known to the demo identity provider.
type Account struct {
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Name         string    `json:"name"`
	Plan         Plan      `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
}

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// PlanRecordVersion is the version written by EncodePlanRecord.
const PlanRecordVersion = 1

const (
	PlanSourceLogin    = "login"
	PlanSourceRegister = "register"
	PlanSourcePayment  = "payment"
	PlanSourceWebhook  = "webhook"
	PlanSourceManual   = "manual"
)

// PlanRecord is the persisted form of the plan slot.
type PlanRecord struct {
	Version   int       `json:"version"`
	Plan      Plan      `json:"plan"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func EncodePlanRecord(plan Plan, source string, at time.Time) (string, error) {
	raw, err := json.Marshal(PlanRecord{
		Version:   PlanRecordVersion,
		Plan:      plan,
		Source:    source,
		UpdatedAt: at.UTC(),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodePlanRecord reads any shape the plan slot has held.
//
// A versioned record is taken at face value. The older shapes are a bare
// "pro"/"free" string, and an unversioned object written by checkout carrying a
// plan field. That object implies pro whatever its plan says. Anything else
// reads as free.
func DecodePlanRecord(raw string) Plan {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PlanFree
	}
	if strings.HasPrefix(raw, "{") {
		var obj struct {
			Version int    `json:"version"`
			Plan    string `json:"plan"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return PlanFree
		}
		if obj.Version >= PlanRecordVersion {
			if Plan(obj.Plan) == PlanPro {
				return PlanPro
			}
			return PlanFree
		}
		if obj.Plan != "" {
			return PlanPro
		}
		return PlanFree
	}
	if Plan(strings.Trim(raw, `"`)) == PlanPro {
		return PlanPro
	}
	return PlanFree
}
