package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tamj/internal/auth"
	"tamj/internal/entitlement"
	"tamj/internal/models"
	"tamj/internal/storage"
	"tamj/pkg/logger"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Store    storage.Store
	Provider auth.Provider
	Gateway  entitlement.PaymentGateway
	Webhook  WebhookVerifier
	Demo     bool
	// LoginPath is where anonymous visitors are sent.
	LoginPath string
	// PublicURL prefixes the payment return address handed to the gateway.
	PublicURL string
	Clock     func() time.Time
	Logger    *logger.Logger
}

// Handler serves the entitlement API. Each request gets a Machine over the
// caller's client namespace.
type Handler struct {
	store     storage.Store
	provider  auth.Provider
	directory auth.PlanDirectory
	gateway   entitlement.PaymentGateway
	webhook   WebhookVerifier
	demo      bool
	loginPath string
	publicURL string
	clock     func() time.Time
	logger    *logger.Logger
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		provider:  d.Provider,
		gateway:   d.Gateway,
		webhook:   d.Webhook,
		demo:      d.Demo,
		loginPath: d.LoginPath,
		publicURL: strings.TrimRight(d.PublicURL, "/"),
		clock:     d.Clock,
		logger:    d.Logger,
	}
	if dir, ok := d.Provider.(auth.PlanDirectory); ok {
		h.directory = dir
	}
	if h.loginPath == "" {
		h.loginPath = entitlement.DefaultLoginPath
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.logger == nil {
		h.logger = logger.NewNop()
	}
	return h
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("POST /api/reset-password", h.handleResetPassword)
	mux.HandleFunc("GET /api/session", h.handleSession)
	mux.HandleFunc("GET /api/plan", h.handleBadge)
	mux.HandleFunc("POST /api/usage/check", h.handleUsageCheck)
	mux.HandleFunc("GET /api/regions/{id}", h.handleRegion)
	mux.HandleFunc("POST /api/activate/{id}", h.handleActivate)
	mux.HandleFunc("POST /api/payment/{feature}", h.handleStartPayment)
	mux.HandleFunc("GET /api/payment/return", h.handlePaymentReturn)
	mux.HandleFunc("GET /api/tickets/{feature}", h.handleTicket)

	mux.HandleFunc("POST /webhook/stripe", h.HandleStripeWebhook)
	return mux
}

func (h *Handler) machine(w http.ResponseWriter, r *http.Request) *entitlement.Machine {
	client := clientID(w, r)
	opts := []entitlement.Option{
		entitlement.WithDemo(h.demo),
		entitlement.WithClock(h.clock),
		entitlement.WithLoginPath(h.loginPath),
		entitlement.WithLogger(h.logger.With("client", client)),
	}
	if h.gateway != nil {
		opts = append(opts, entitlement.WithGateway(h.gateway))
	}
	return entitlement.New(storage.Namespace(h.store, client), h.provider, opts...)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	user, err := h.machine(w, r).Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "plan": models.PlanFree})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	m := h.machine(w, r)
	user, err := m.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := m.Plan(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "plan": plan})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	nav, err := h.machine(w, r).Logout(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := h.machine(w, r).ResetPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	check, err := h.machine(w, r).RequireAuth(r.Context(), r.URL.Query().Get("return"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) handleBadge(w http.ResponseWriter, r *http.Request) {
	badge, err := h.machine(w, r).Badge(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

func (h *Handler) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	res, err := h.machine(w, r).CheckUsageGate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRegion(w http.ResponseWriter, r *http.Request) {
	region, err := h.machine(w, r).Region(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleActivate is the server side of a Pro-only button. The action itself
// runs in the page; the server only records that it was allowed.
func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	prompt, err := h.machine(w, r).Activate(r.Context(), func(context.Context) error {
		h.logger.Infow("Pro action activated", "id", id)
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if prompt != nil {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{"allowed": false, "prompt": prompt})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": true})
}

type paymentRequest struct {
	// Return is the site path the buyer comes back to.
	Return string `json:"return"`
}

func (h *Handler) handleStartPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}
	next := localPath(req.Return)
	returnURL := h.publicURL + "/api/payment/return?next=" + url.QueryEscape(next)

	res, err := h.machine(w, r).StartPayment(r.Context(), r.PathValue("feature"), returnURL)
	if errors.Is(err, entitlement.ErrPaymentUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: "payment_unavailable", Message: auth.Message(err)})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePaymentReturn is where the payment provider sends the buyer back. It
// mints the ticket and forwards to the page without the paid marker. The
// return is unsigned, so it never changes the plan: a Pro upgrade arrives
// through the webhook and applies on the next login.
func (h *Handler) handlePaymentReturn(w http.ResponseWriter, r *http.Request) {
	m := h.machine(w, r)
	ret, err := m.HandlePaymentReturn(r.Context(), r.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ret.Minted {
		h.logger.Infow("Payment return", "feature", ret.FeatureID)
	}
	http.Redirect(w, r, localPath(r.URL.Query().Get("next")), http.StatusSeeOther)
}

type ticketStatus struct {
	Feature   string     `json:"feature"`
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	feature := r.PathValue("feature")
	m := h.machine(w, r)
	valid, err := m.HasValidTicket(r.Context(), feature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := ticketStatus{Feature: feature, Valid: valid}
	exp, ok, err := m.TicketExpiry(r.Context(), feature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ok {
		status.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, status)
}

// localPath keeps redirects on this site: anything that is not an absolute
// path becomes "/".
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
