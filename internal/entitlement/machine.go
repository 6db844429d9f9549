// Package entitlement tracks who is signed in, which plan they are on and how
// much of the free allowance they have used, and answers the gate checks that
// pages run before doing anything metered or Pro-only.
//
// A Machine owns no global state: everything lives in the slot store it is
// given, so one Machine per browser profile (or per test) is the intended use.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"tamj/internal/auth"
	"tamj/internal/models"
	"tamj/internal/payment"
	"tamj/internal/storage"
	"tamj/pkg/logger"
)

// Slot keys. Usage slots are derived per user and month, see UsageKey.
const (
	SlotSession = "tamj_session"
	SlotPlan    = "tamj_plan"
	SlotTickets = "tamj_tickets"
	usagePrefix = "tamj_usage_"
)

const (
	FreeMonthlyLimit = 3
	TicketTTL        = 24 * time.Hour // one day per purchase
	Unlimited        = -1
)

const (
	DefaultLoginPath  = "/login.html"
	DefaultUpgradeURL = "/checkout.html?plan=annual"
)

// PaymentGateway turns a purchase into a redirect URL at the payment provider.
type PaymentGateway interface {
	CheckoutURL(ctx context.Context, c payment.Checkout) (string, error)
}

var ErrPaymentUnavailable = errors.New("no payment gateway configured")

type Machine struct {
	store      storage.Store
	provider   auth.Provider
	gateway    PaymentGateway
	demo       bool
	now        func() time.Time
	loginPath  string
	upgradeURL string
	logger     *logger.Logger
	listeners  []func(models.User)
}

type Option func(*Machine)

func WithGateway(g PaymentGateway) Option {
	return func(m *Machine) { m.gateway = g }
}

// WithDemo makes StartPayment grant tickets on the spot instead of redirecting.
func WithDemo(demo bool) Option {
	return func(m *Machine) { m.demo = demo }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLoginPath(path string) Option {
	return func(m *Machine) { m.loginPath = path }
}

func WithUpgradeURL(u string) Option {
	return func(m *Machine) { m.upgradeURL = u }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithSessionListener registers fn to receive the session whenever RequireAuth
// finds one.
func WithSessionListener(fn func(models.User)) Option {
	return func(m *Machine) { m.listeners = append(m.listeners, fn) }
}

func New(store storage.Store, provider auth.Provider, opts ...Option) *Machine {
	m := &Machine{
		store:      store,
		provider:   provider,
		now:        time.Now,
		loginPath:  DefaultLoginPath,
		upgradeURL: DefaultUpgradeURL,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the signed-in user, or nil. An unreadable slot counts as
// signed out.
func (m *Machine) Session(ctx context.Context) (*models.User, error) {
	raw, ok, err := m.store.Get(ctx, SlotSession)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warnw("Discarding unreadable session", "error", err)
		return nil, nil
	}
	return &user, nil
}

func (m *Machine) setSession(ctx context.Context, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, SlotSession, string(raw)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Plan returns the recorded plan; nothing recorded reads as free.
func (m *Machine) Plan(ctx context.Context) (models.Plan, error) {
	raw, ok, err := m.store.Get(ctx, SlotPlan)
	if err != nil {
		return models.PlanFree, fmt.Errorf("failed to read plan: %w", err)
	}
	if !ok {
		return models.PlanFree, nil
	}
	return models.DecodePlanRecord(raw), nil
}

func (m *Machine) IsPro(ctx context.Context) (bool, error) {
	plan, err := m.Plan(ctx)
	return plan == models.PlanPro, err
}

func (m *Machine) planRecorded(ctx context.Context) (bool, error) {
	_, ok, err := m.store.Get(ctx, SlotPlan)
	return ok, err
}

func (m *Machine) SetPlan(ctx context.Context, plan models.Plan, source string) error {
	raw, err := models.EncodePlanRecord(plan, source, m.now())
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, SlotPlan, raw); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// Register creates a free account and signs it in.
func (m *Machine) Register(ctx context.Context, email, password, name string) (models.User, error) {
	user, err := m.provider.Register(ctx, email, password, name)
	if err != nil {
		return models.User{}, err
	}
	if err := m.setSession(ctx, user); err != nil {
		return models.User{}, err
	}
	if err := m.SetPlan(ctx, models.PlanFree, models.PlanSourceRegister); err != nil {
		return models.User{}, err
	}
	m.logger.Infow("Registered", "uid", user.UID)
	return user, nil
}

// Login signs in. A Pro account switches the plan to pro; otherwise the plan
// is only initialised to free when none is recorded yet.
func (m *Machine) Login(ctx context.Context, email, password string) (models.User, error) {
	user, accountPlan, err := m.provider.Login(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	if err := m.setSession(ctx, user); err != nil {
		return models.User{}, err
	}

	if accountPlan == models.PlanPro {
		err = m.SetPlan(ctx, models.PlanPro, models.PlanSourceLogin)
	} else {
		var recorded bool
		recorded, err = m.planRecorded(ctx)
		if err == nil && !recorded {
			err = m.SetPlan(ctx, models.PlanFree, models.PlanSourceLogin)
		}
	}
	if err != nil {
		return models.User{}, err
	}
	m.logger.Infow("Logged in", "uid", user.UID, "accountPlan", accountPlan)
	return user, nil
}

// Navigation tells the caller where to send the browser next.
type Navigation struct {
	Redirect string `json:"redirect"`
}

// Logout forgets the session and the plan and points at the login view.
func (m *Machine) Logout(ctx context.Context) (Navigation, error) {
	if err := m.store.Delete(ctx, SlotSession); err != nil {
		return Navigation{}, fmt.Errorf("failed to clear session: %w", err)
	}
	if err := m.store.Delete(ctx, SlotPlan); err != nil {
		return Navigation{}, fmt.Errorf("failed to clear plan: %w", err)
	}
	nav := Navigation{Redirect: m.loginPath}
	if err := m.provider.Logout(ctx); err != nil {
		return nav, err
	}
	return nav, nil
}

func (m *Machine) ResetPassword(ctx context.Context, email string) error {
	return m.provider.ResetPassword(ctx, email)
}

// AuthCheck is the outcome of RequireAuth: either a user, or a redirect.
type AuthCheck struct {
	User     *models.User `json:"user,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
}

// RequireAuth sends anonymous visitors to the login view with destination as
// the return parameter, and hands the session to every listener otherwise.
func (m *Machine) RequireAuth(ctx context.Context, destination string) (AuthCheck, error) {
	user, err := m.Session(ctx)
	if err != nil {
		return AuthCheck{}, err
	}
	if user == nil {
		return AuthCheck{Redirect: m.loginPath + "?return=" + url.QueryEscape(destination)}, nil
	}
	for _, fn := range m.listeners {
		fn(*user)
	}
	return AuthCheck{User: user}, nil
}
