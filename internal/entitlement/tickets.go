package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"tamj/internal/payment"
)

// PaidParam marks a return from the payment provider.
const PaidParam = "paid"

func (m *Machine) tickets(ctx context.Context) (map[string]int64, error) {
	raw, ok, err := m.store.Get(ctx, SlotTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	tickets := make(map[string]int64)
	if !ok {
		return tickets, nil
	}
	if err := json.Unmarshal([]byte(raw), &tickets); err != nil {
		m.logger.Warnw("Discarding unreadable tickets", "error", err)
		return make(map[string]int64), nil
	}
	return tickets, nil
}

// TicketExpiry returns when the ticket for featureID lapses, if there is one.
func (m *Machine) TicketExpiry(ctx context.Context, featureID string) (time.Time, bool, error) {
	tickets, err := m.tickets(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	exp, ok := tickets[featureID]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(exp), true, nil
}

// HasValidTicket holds while the ticket's expiry is still ahead of now.
func (m *Machine) HasValidTicket(ctx context.Context, featureID string) (bool, error) {
	tickets, err := m.tickets(ctx)
	if err != nil {
		return false, err
	}
	exp, ok := tickets[featureID]
	return ok && exp > m.now().UnixMilli(), nil
}

func (m *Machine) mintTicket(ctx context.Context, featureID string) (time.Time, error) {
	tickets, err := m.tickets(ctx)
	if err != nil {
		return time.Time{}, err
	}
	expiry := m.now().Add(TicketTTL)
	tickets[featureID] = expiry.UnixMilli()
	raw, err := json.Marshal(tickets)
	if err != nil {
		return time.Time{}, err
	}
	if err := m.store.Set(ctx, SlotTickets, string(raw)); err != nil {
		return time.Time{}, fmt.Errorf("failed to save tickets: %w", err)
	}
	return time.UnixMilli(expiry.UnixMilli()), nil
}

type PaymentStatus string

const (
	PaymentAlreadyEntitled PaymentStatus = "already_entitled"
	PaymentGranted         PaymentStatus = "granted"
	PaymentRedirectIssued  PaymentStatus = "redirect_issued"
)

type PaymentResult struct {
	Status      PaymentStatus `json:"status"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
}

// StartPayment buys a 24h ticket for featureID. returnURL is the page the
// provider sends the buyer back to; it receives the paid marker.
//
// A redirect only means the buyer was sent away: the ticket appears once
// HandlePaymentReturn sees the marker.
func (m *Machine) StartPayment(ctx context.Context, featureID, returnURL string) (PaymentResult, error) {
	valid, err := m.HasValidTicket(ctx, featureID)
	if err != nil {
		return PaymentResult{}, err
	}
	if valid {
		exp, _, err := m.TicketExpiry(ctx, featureID)
		if err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{Status: PaymentAlreadyEntitled, ExpiresAt: &exp}, nil
	}

	if m.demo {
		exp, err := m.mintTicket(ctx, featureID)
		if err != nil {
			return PaymentResult{}, err
		}
		m.logger.Infow("Granted demo ticket", "feature", featureID)
		return PaymentResult{Status: PaymentGranted, ExpiresAt: &exp}, nil
	}

	if m.gateway == nil {
		return PaymentResult{}, ErrPaymentUnavailable
	}

	success, err := url.Parse(returnURL)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("invalid return url %q: %w", returnURL, err)
	}
	q := success.Query()
	q.Set(PaidParam, featureID)
	success.RawQuery = q.Encode()

	checkout := payment.Checkout{
		FeatureID:  featureID,
		SuccessURL: success.String(),
		CancelURL:  returnURL,
	}
	user, err := m.Session(ctx)
	if err != nil {
		return PaymentResult{}, err
	}
	if user != nil {
		checkout.Email = user.Email
		checkout.UserID = user.UID
	}

	redirect, err := m.gateway.CheckoutURL(ctx, checkout)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("failed to start payment for %s: %w", featureID, err)
	}
	m.logger.Infow("Payment redirect issued", "feature", featureID, "uid", checkout.UserID)
	return PaymentResult{Status: PaymentRedirectIssued, RedirectURL: redirect}, nil
}

type PaymentReturn struct {
	FeatureID string    `json:"featureId,omitempty"`
	Minted    bool      `json:"minted"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	// CleanURL is u without the paid marker, for replacing the current location.
	CleanURL string `json:"cleanUrl"`
}

// HandlePaymentReturn mints the ticket named by the paid marker in u, if any,
// and returns u with the marker removed so a reload does not mint again.
func (m *Machine) HandlePaymentReturn(ctx context.Context, u *url.URL) (PaymentReturn, error) {
	featureID := u.Query().Get(PaidParam)
	if featureID == "" {
		return PaymentReturn{CleanURL: u.String()}, nil
	}
	exp, err := m.mintTicket(ctx, featureID)
	if err != nil {
		return PaymentReturn{}, err
	}

	clean := *u
	q := clean.Query()
	q.Del(PaidParam)
	clean.RawQuery = q.Encode()

	m.logger.Infow("Payment completed", "feature", featureID)
	return PaymentReturn{FeatureID: featureID, Minted: true, ExpiresAt: exp, CleanURL: clean.String()}, nil
}
