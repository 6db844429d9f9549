package server

import (
	"encoding/json"
	"io"
	"net/http"

	"tamj/internal/models"
	"tamj/internal/payment"

	"github.com/stripe/stripe-go/v72"
)

type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error)
}

// HandleStripeWebhook upgrades the account behind a completed Pro checkout.
// Feature purchases are only logged: their tickets are minted when the buyer
// returns to the site.
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		h.logger.Errorw("Webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Errorw("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Errorw("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := h.webhook.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Errorw("Failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.logger.Errorw("Failed to parse checkout session", "error", err)
			http.Error(w, "Failed to parse event data", http.StatusBadRequest)
			return
		}

		feature := session.Metadata[payment.MetadataFeatureID]
		if session.Metadata[payment.MetadataPlan] != string(models.PlanPro) {
			h.logger.Infow("Feature purchase completed",
				"sessionID", session.ID, "feature", feature, "uid", session.ClientReferenceID)
			break
		}

		if session.ClientReferenceID == "" {
			h.logger.Errorw("Missing client reference ID", "sessionID", session.ID)
			http.Error(w, "Missing client reference ID", http.StatusBadRequest)
			return
		}
		if h.directory == nil {
			h.logger.Warnw("Identity provider keeps no plans, upgrade applies on return only",
				"sessionID", session.ID, "uid", session.ClientReferenceID)
			break
		}
		if err := h.directory.SetAccountPlan(r.Context(), session.ClientReferenceID, models.PlanPro); err != nil {
			h.logger.Errorw("Failed to upgrade account", "uid", session.ClientReferenceID, "error", err)
			http.Error(w, "Failed to upgrade account", http.StatusInternalServerError)
			return
		}
		h.logger.Infow("Account upgraded", "uid", session.ClientReferenceID, "sessionID", session.ID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			h.logger.Errorw("Failed to parse payment intent", "error", err)
			break
		}
		h.logger.Errorw("Payment failed", "paymentID", intent.ID, "error", intent.LastPaymentError)

	default:
		h.logger.Infow("Ignoring webhook event", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}
