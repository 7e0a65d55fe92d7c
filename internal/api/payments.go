package api

import (
	"net/http"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

type orderResponse struct {
	TokenID   int64  `json:"token_id"`
	OrderID   string `json:"order_id,omitempty"`
	Amount    int    `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"key_id,omitempty"`
	TestMode  bool   `json:"test_mode"`
	Completed bool   `json:"completed"`
}

type createOrderRequest struct {
	TemplateID int64 `json:"template_id"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	template, err := s.templates.Get(r.Context(), req.TemplateID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	order, err := s.payments.CreateOrder(r.Context(), userFrom(r), template)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, orderResponse{
		TokenID:   order.TokenID,
		OrderID:   order.OrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		KeyID:     order.KeyID,
		TestMode:  order.TestMode,
		Completed: order.TestMode,
	})
}

type tokenResponse struct {
	ID            int64      `json:"id"`
	TemplateID    int64      `json:"template_id"`
	OrderID       string     `json:"order_id,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	Status        string     `json:"status"`
	Amount        int        `json:"amount"`
	Currency      string     `json:"currency"`
	CanUse        bool       `json:"can_use"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toTokenResponse(t *models.PaymentToken) tokenResponse {
	return tokenResponse{
		ID:            t.ID,
		TemplateID:    t.TemplateID,
		OrderID:       t.OrderID,
		PaymentStatus: string(t.PaymentStatus),
		Status:        string(t.Status),
		Amount:        t.AmountPaid,
		Currency:      t.Currency,
		CanUse:        t.Consumable(),
		UsedAt:        t.UsedAt,
		RefundedAt:    t.RefundedAt,
		CreatedAt:     t.CreatedAt,
	}
}

type verifyPaymentRequest struct {
	TokenID           int64  `json:"token_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	token, err := s.payments.VerifyPayment(
		r.Context(),
		userFrom(r).ID,
		req.TokenID,
		req.RazorpayPaymentID,
		req.RazorpayOrderID,
		req.RazorpaySignature,
	)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTokenResponse(token))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.payments.ListTokens(r.Context(), userFrom(r).ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenResponse(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}
