package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tamj/internal/auth"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// writeError renders user errors with their localized message. Anything else
// is an internal failure and is logged instead of shown.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var aerr *auth.Error
	if errors.As(err, &aerr) {
		writeJSON(w, authStatus(aerr.Code), errorBody{Code: string(aerr.Code), Message: aerr.Message})
		return
	}
	h.logger.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: auth.Message(err)})
}

func authStatus(code auth.Code) int {
	switch code {
	case auth.CodeDuplicateAccount:
		return http.StatusConflict
	case auth.CodeAccountNotFound:
		return http.StatusNotFound
	case auth.CodeInvalidCredential:
		return http.StatusUnauthorized
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case auth.CodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: message})
}
