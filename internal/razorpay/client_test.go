package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.Config{
		RazorpayKeyID:     "rzp_test_key",
		RazorpayKeySecret: "rzp_test_secret",
		RazorpayBaseURL:   baseURL,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(cfg, log)
}

func TestCreateOrder(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_test_key", user)
		require.Equal(t, "rzp_test_secret", pass)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":"order_abc","amount":19900,"currency":"INR","receipt":"token_7","status":"created"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	order, err := client.CreateOrder(context.Background(), 19900, "INR", "token_7", map[string]string{"token_id": "7"})
	require.NoError(t, err)
	require.Equal(t, "order_abc", order.ID)
	require.Equal(t, 19900, order.Amount)
	require.Equal(t, "created", order.Status)

	require.Equal(t, float64(19900), gotBody["amount"])
	require.Equal(t, "INR", gotBody["currency"])
	require.Equal(t, "token_7", gotBody["receipt"])
	// Auto-capture so a successful payment needs no second step.
	require.Equal(t, float64(1), gotBody["payment_capture"])
	notes, ok := gotBody["notes"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "7", notes["token_id"])
}

func TestCreateOrderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"description":"bad key"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateOrder(context.Background(), 100, "INR", "r", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=401")
	require.Contains(t, err.Error(), "bad key")
}

func TestCreateOrderMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateOrder(context.Background(), 100, "INR", "r", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing id")
}

func TestFetchPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/payments/pay_123", r.URL.Path)
		fmt.Fprint(w, `{"id":"pay_123","order_id":"order_abc","amount":19900,"currency":"INR","status":"captured","method":"upi"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	payment, err := client.FetchPayment(context.Background(), "pay_123")
	require.NoError(t, err)
	require.Equal(t, "pay_123", payment.ID)
	require.Equal(t, "captured", payment.Status)
	require.Equal(t, "order_abc", payment.OrderID)
}

func TestRefund(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments/pay_123/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":"rfnd_1","payment_id":"pay_123","amount":19900,"status":"processed"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	refund, err := client.Refund(context.Background(), "pay_123", 19900, map[string]string{"reason": "failed"})
	require.NoError(t, err)
	require.Equal(t, "rfnd_1", refund.ID)
	require.Equal(t, "processed", refund.Status)

	require.Equal(t, float64(19900), gotBody["amount"])
	notes, ok := gotBody["notes"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "failed", notes["reason"])
}

func TestRefundFullAmountOmitsField(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":"rfnd_1","payment_id":"pay_123","status":"processed"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Refund(context.Background(), "pay_123", 0, nil)
	require.NoError(t, err)
	require.NotContains(t, gotBody, "amount")
}

func TestVerifySignature(t *testing.T) {
	client := newTestClient(t, "http://unused")

	mac := hmac.New(sha256.New, []byte("rzp_test_secret"))
	mac.Write([]byte("order_abc|pay_123"))
	valid := hex.EncodeToString(mac.Sum(nil))

	require.True(t, client.VerifySignature("order_abc", "pay_123", valid))
	require.False(t, client.VerifySignature("order_abc", "pay_123", valid[:len(valid)-1]))
	require.False(t, client.VerifySignature("order_xyz", "pay_123", valid))
	require.False(t, client.VerifySignature("", "pay_123", valid))
	require.False(t, client.VerifySignature("order_abc", "", valid))
	require.False(t, client.VerifySignature("order_abc", "pay_123", ""))
}
