package auth

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"tamj/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DemoAccount seeds the demo directory.
type DemoAccount struct {
	Email    string
	Password string
	Name     string
	Plan     models.Plan
}

var DefaultDemoAccounts = []DemoAccount{
	{Email: "demo@tamj.jp", Password: "tamj1234", Name: "デモユーザー", Plan: models.PlanFree},
	{Email: "test@tamj.jp", Password: "test1234", Name: "テストユーザー", Plan: models.PlanFree},
	{Email: "info@tamjump.com", Password: "tamj2026", Name: "TAmJ Admin", Plan: models.PlanPro},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Demo is an in-process account directory standing in for a real identity
// provider. Registrations live as long as the process.
type Demo struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	uids     map[string]string // uid -> email
	cost     int
	now      func() time.Time
}

type DemoOption func(*Demo)

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) DemoOption {
	return func(d *Demo) { d.cost = cost }
}

func NewDemo(seed []DemoAccount, opts ...DemoOption) (*Demo, error) {
	d := &Demo{
		accounts: make(map[string]*models.Account),
		uids:     make(map[string]string),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, a := range seed {
		if _, err := d.add(a.Email, a.Password, a.Name, a.Plan); err != nil {
			return nil, fmt.Errorf("failed to seed demo account %s: %w", a.Email, err)
		}
		d.uids[LoginUID(a.Email)] = NormalizeEmail(a.Email)
	}
	return d, nil
}

func (d *Demo) add(email, password, name string, plan models.Plan) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Name:         name,
		Plan:         plan,
		CreatedAt:    d.now(),
	}
	d.accounts[acc.Email] = acc
	return acc, nil
}

// LoginUID derives the stable demo uid for an email.
func LoginUID(email string) string {
	return "demo_" + nonAlnum.ReplaceAllString(NormalizeEmail(email), "")
}

func (d *Demo) Register(_ context.Context, email, password, name string) (models.User, error) {
	email = NormalizeEmail(email)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.accounts[email]; exists {
		return models.User{}, ErrDuplicateAccount
	}
	user := models.User{UID: "demo_" + uuid.NewString(), Email: email, DisplayName: name}
	user.DisplayName = user.Name()

	if _, err := d.add(email, password, user.DisplayName, models.PlanFree); err != nil {
		return models.User{}, newError(CodeProvider, err)
	}
	d.uids[user.UID] = email
	return user, nil
}

func (d *Demo) Login(_ context.Context, email, password string) (models.User, models.Plan, error) {
	email = NormalizeEmail(email)

	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.accounts[email]
	if !ok {
		return models.User{}, "", ErrAccountNotFound
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return models.User{}, "", ErrInvalidCredential
	}
	user := models.User{UID: LoginUID(acc.Email), Email: acc.Email, DisplayName: acc.Name}
	d.uids[user.UID] = acc.Email
	return user, acc.Plan, nil
}

func (d *Demo) Logout(context.Context) error { return nil }

// ResetPassword pretends to send a reset email.
func (d *Demo) ResetPassword(context.Context, string) error { return nil }

func (d *Demo) SetAccountPlan(_ context.Context, uid string, plan models.Plan) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	email, ok := d.uids[uid]
	if !ok {
		return ErrAccountNotFound
	}
	d.accounts[email].Plan = plan
	return nil
}

// Account returns a copy of the directory entry for email.
func (d *Demo) Account(email string) (models.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.accounts[NormalizeEmail(email)]
	if !ok {
		return models.Account{}, false
	}
	return *acc, true
}
