package payment

import (
	"context"
	"fmt"

	"tamj/config"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

// Metadata keys attached to checkout sessions.
const (
	MetadataFeatureID = "feature_id"
	MetadataPlan      = "plan"
)

// FeaturePro is the feature id of the plan upgrade itself.
const FeaturePro = "pro"

// Checkout describes one purchase redirect.
type Checkout struct {
	FeatureID  string
	Email      string
	UserID     string
	SuccessURL string
	CancelURL  string
}

type StripeClient struct {
	secretKey     string
	webhookSecret string
	priceID       string
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	stripe.Key = cfg.SecretKey

	return &StripeClient{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookKey,
		priceID:       cfg.PriceID,
	}
}

// CheckoutURL creates a Checkout Session and returns its hosted URL.
func (s *StripeClient) CheckoutURL(ctx context.Context, c Checkout) (string, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	sess, err := session.New(s.checkoutParams(ctx, c))
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.URL, nil
}

// checkoutParams leaves the client reference unset for anonymous buyers:
// Stripe rejects an empty one.
func (s *StripeClient) checkoutParams(ctx context.Context, c Checkout) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.SuccessURL),
		CancelURL:  stripe.String(c.CancelURL),
	}
	if c.UserID != "" {
		params.ClientReferenceID = stripe.String(c.UserID)
	}
	if c.Email != "" {
		params.CustomerEmail = stripe.String(c.Email)
	}
	params.Context = ctx
	params.AddMetadata(MetadataFeatureID, c.FeatureID)
	if c.FeatureID == FeaturePro {
		params.AddMetadata(MetadataPlan, FeaturePro)
	}

	return params
}

func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, s.webhookSecret)
}
