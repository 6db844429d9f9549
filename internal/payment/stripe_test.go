package payment

import (
	"context"
	"testing"

	"tamj/config"
)

func TestCheckoutParams(t *testing.T) {
	s := NewStripeClient(config.StripeConfig{SecretKey: "sk_test", PriceID: "price_1"})

	t.Run("signed in", func(t *testing.T) {
		p := s.checkoutParams(context.Background(), Checkout{
			FeatureID:  FeaturePro,
			Email:      "demo@tamj.jp",
			UserID:     "demo_demotamjjp",
			SuccessURL: "https://tamj.jp/api/payment/return?paid=pro",
			CancelURL:  "https://tamj.jp/api/payment/return",
		})
		if p.ClientReferenceID == nil || *p.ClientReferenceID != "demo_demotamjjp" {
			t.Errorf("ClientReferenceID = %v, want the uid", p.ClientReferenceID)
		}
		if p.CustomerEmail == nil || *p.CustomerEmail != "demo@tamj.jp" {
			t.Errorf("CustomerEmail = %v", p.CustomerEmail)
		}
		if p.Metadata[MetadataFeatureID] != FeaturePro || p.Metadata[MetadataPlan] != FeaturePro {
			t.Errorf("Metadata = %v, want feature and plan", p.Metadata)
		}
		if *p.LineItems[0].Price != "price_1" {
			t.Errorf("Price = %s", *p.LineItems[0].Price)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		p := s.checkoutParams(context.Background(), Checkout{FeatureID: "scheme", SuccessURL: "/x", CancelURL: "/x"})
		if p.ClientReferenceID != nil {
			t.Errorf("ClientReferenceID = %q, want unset", *p.ClientReferenceID)
		}
		if p.CustomerEmail != nil {
			t.Errorf("CustomerEmail = %q, want unset", *p.CustomerEmail)
		}
		if _, ok := p.Metadata[MetadataPlan]; ok {
			t.Error("feature purchase carries plan metadata")
		}
	})
}
