package payment

import (
	"context"
	"fmt"
	"net/url"
)

// Link redirects to a fixed Stripe Payment Link, passing the buyer through
// query parameters instead of creating a session.
type Link struct {
	base string
}

func NewLink(base string) *Link {
	return &Link{base: base}
}

func (l *Link) CheckoutURL(_ context.Context, c Checkout) (string, error) {
	u, err := url.Parse(l.base)
	if err != nil {
		return "", fmt.Errorf("invalid payment link %q: %w", l.base, err)
	}
	ref := c.UserID
	if ref == "" {
		ref = "anonymous"
	}
	q := u.Query()
	q.Set("prefilled_email", c.Email)
	q.Set("client_reference_id", ref)
	q.Set("success_url", c.SuccessURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
