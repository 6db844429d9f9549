package payment

import (
	"context"
	"net/url"
	"testing"
)

func TestLinkCheckoutURL(t *testing.T) {
	l := NewLink("https://buy.stripe.com/test_abc")
	got, err := l.CheckoutURL(context.Background(), Checkout{
		FeatureID:  "scheme",
		Email:      "demo@tamj.jp",
		UserID:     "demo_demotamjjp",
		SuccessURL: "https://tamj.jp/members/scheme.html?paid=scheme",
	})
	if err != nil {
		t.Fatalf("CheckoutURL() unexpected error = %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "buy.stripe.com" || u.Path != "/test_abc" {
		t.Errorf("CheckoutURL() = %s, want the payment link", got)
	}
	q := u.Query()
	if q.Get("prefilled_email") != "demo@tamj.jp" {
		t.Errorf("prefilled_email = %q", q.Get("prefilled_email"))
	}
	if q.Get("client_reference_id") != "demo_demotamjjp" {
		t.Errorf("client_reference_id = %q", q.Get("client_reference_id"))
	}
	if q.Get("success_url") != "https://tamj.jp/members/scheme.html?paid=scheme" {
		t.Errorf("success_url = %q", q.Get("success_url"))
	}
}

func TestLinkAnonymous(t *testing.T) {
	got, err := NewLink("https://buy.stripe.com/x").CheckoutURL(context.Background(), Checkout{})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(got)
	if ref := u.Query().Get("client_reference_id"); ref != "anonymous" {
		t.Errorf("client_reference_id = %q, want anonymous", ref)
	}
}

func TestVerifyWebhookSignatureWithoutSecret(t *testing.T) {
	s := &StripeClient{}
	if _, err := s.VerifyWebhookSignature([]byte(`{}`), "t=1,v1=x"); err == nil {
		t.Error("VerifyWebhookSignature() without secret should fail")
	}
}
