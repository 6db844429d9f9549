package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookie identifies a browser profile. Every profile gets its own slot
// namespace, the way each browser keeps its own storage.
const ClientCookie = "tamj_client"

const clientCookieAge = 365 * 24 * time.Hour

// clientID returns the caller's profile id, issuing a fresh one when the
// cookie is missing or not a uuid.
func clientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(ClientCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
