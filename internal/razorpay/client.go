package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
)

// Client talks to the Razorpay REST API with basic-auth key credentials.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

type Order struct {
	ID       string `json:"id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int    `json:"amount"`
	Status    string `json:"status"`
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		keyID:     cfg.RazorpayKeyID,
		keySecret: cfg.RazorpayKeySecret,
		baseURL:   strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// KeyID is the public half of the credentials, needed by checkout clients.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order for the given amount in minor units.
// payment_capture is set so successful payments land as captured.
func (c *Client) CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]string) (*Order, error) {
	payload := map[string]any{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("invalid order response (missing id)")
	}
	return &order, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	endpoint := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &payment); err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	if payment.ID == "" {
		return nil, fmt.Errorf("invalid payment response (missing id)")
	}
	return &payment, nil
}

// Refund issues a full or partial refund against a captured payment. Amount
// is in minor units; zero refunds the whole payment.
func (c *Client) Refund(ctx context.Context, paymentID string, amount int, notes map[string]string) (*Refund, error) {
	payload := map[string]any{}
	if amount > 0 {
		payload["amount"] = amount
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	var refund Refund
	endpoint := "/v1/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &refund); err != nil {
		return nil, fmt.Errorf("refund payment: %w", err)
	}
	if refund.ID == "" {
		return nil, fmt.Errorf("invalid refund response (missing id)")
	}
	return &refund, nil
}

// VerifySignature checks the checkout callback signature: HMAC-SHA256 over
// "<order_id>|<payment_id>" keyed with the secret, hex encoded.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("razorpay call failed", "status", resp.StatusCode, "endpoint", endpoint, "body", truncateBody(rawBody))
		}
		return fmt.Errorf("razorpay error: status=%d endpoint=%s body=%s", resp.StatusCode, endpoint, truncateBody(rawBody))
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	return nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
