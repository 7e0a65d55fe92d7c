package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mckhtech/wedding-plannera-ai/internal/service"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// serviceError maps the service sentinels onto the wire contract. Denials
// carry structured payloads so clients can route the user without parsing
// message text.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	var payErr *service.PaymentRequiredError
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		s.writeJSON(w, http.StatusForbidden, map[string]any{
			"error":                  "no_free_credits",
			"free_credits_remaining": 0,
		})
	case errors.As(err, &payErr):
		s.writeJSON(w, http.StatusForbidden, map[string]any{
			"error":       "payment_required",
			"template_id": payErr.TemplateID,
			"amount":      payErr.Amount,
			"currency":    payErr.Currency,
		})
	case errors.Is(err, service.ErrPaymentRequired):
		s.writeJSON(w, http.StatusForbidden, map[string]string{"error": "payment_required"})

	case errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrTemplateUnavailable),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrGenerationNotFound),
		errors.Is(err, service.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrInvalidTemplate),
		errors.Is(err, service.ErrInvalidBundle),
		errors.Is(err, service.ErrVerificationFailed),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrFederatedAccount):
		s.writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		s.writeError(w, http.StatusConflict, err.Error())

	default:
		s.log.Error("handler error", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
