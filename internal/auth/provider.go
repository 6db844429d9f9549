// Package auth implements the identity capability behind the entitlement
// state machine: a demo directory that never leaves the process, and a client
// for the Firebase identity toolkit REST API.
package auth

import (
	"context"
	"strings"

	"tamj/internal/models"
)

type Provider interface {
	Register(ctx context.Context, email, password, name string) (models.User, error)
	// Login also reports the account's plan when the provider knows it, "" otherwise.
	Login(ctx context.Context, email, password string) (models.User, models.Plan, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
}

// PlanDirectory is implemented by providers that keep a plan per account.
type PlanDirectory interface {
	SetAccountPlan(ctx context.Context, uid string, plan models.Plan) error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
