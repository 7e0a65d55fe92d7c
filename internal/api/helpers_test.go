package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/auth"
	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/gemini"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/razorpay"
	"github.com/mckhtech/wedding-plannera-ai/internal/repository"
	"github.com/mckhtech/wedding-plannera-ai/internal/service"
	"github.com/mckhtech/wedding-plannera-ai/internal/storage"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	cfg         config.Config
	handler     http.Handler
	mem         *repository.Memory
	files       storage.Storage
	gateway     *stubGateway
	generator   *stubGenerator
	google      *stubGoogle
	payments    *service.PaymentService
	templates   *service.TemplateService
	generations *service.GenerationService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithConfig(t, config.Config{
		AppEnv:              config.EnvDevelopment,
		DefaultCurrency:     "INR",
		FreeCreditsOnSignup: 2,
		WorkerCount:         2,
		QueueSize:           16,
		MaxUploadBytes:      10 << 20,
		PublicBaseURL:       "http://localhost:8000",
		AdminUsername:       "admin",
		AdminPassword:       "secret",
		CORSAllowedOrigins:  []string{"*"},
		WatermarkText:       "PREVIEW",
	})
}

func newTestAppWithConfig(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := repository.NewMemory()
	files, err := storage.NewLocal(t.TempDir(), cfg.PublicBaseURL)
	require.NoError(t, err)

	gateway := newStubGateway()
	generator := &stubGenerator{files: files}
	google := &stubGoogle{}
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	accessSvc := service.NewAccessService(mem.Tokens(), mem.Generations())
	paymentSvc := service.NewPaymentService(cfg, log, mem.Tokens(), gateway)
	templateSvc := service.NewTemplateService(cfg, mem.Templates())
	userSvc := service.NewUserService(mem.Users())
	authSvc := service.NewAuthService(cfg, log, mem.Users(), issuer, google)
	generationSvc := service.NewGenerationService(cfg, log, accessSvc, paymentSvc,
		mem.Templates(), mem.Generations(), mem.Tokens(), generator, files)

	require.NoError(t, templateSvc.EnsureDefaults(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go generationSvc.Run(ctx)

	server := NewServer(cfg, log, authSvc, userSvc, templateSvc, accessSvc, paymentSvc, generationSvc, files)
	return &testApp{
		cfg:         cfg,
		handler:     server.Handler(),
		mem:         mem,
		files:       files,
		gateway:     gateway,
		generator:   generator,
		google:      google,
		payments:    paymentSvc,
		templates:   templateSvc,
		generations: generationSvc,
	}
}

// do runs one JSON request through the router.
func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// register creates an account through the API and returns its bearer token.
func (a *testApp) register(t *testing.T, email string) (userResponse, string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  "sup3rsecret",
		"full_name": "Flow Tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeAs[authResponse](t, rec)
	require.NotEmpty(t, resp.AccessToken)
	return resp.User, resp.AccessToken
}

// freeTemplateID and paidTemplateID rely on the seeded default catalog.
func (a *testApp) freeTemplateID(t *testing.T) int64 {
	return a.templateIDWhere(t, func(tpl *models.Template) bool { return tpl.IsFree })
}

func (a *testApp) paidTemplateID(t *testing.T) int64 {
	return a.templateIDWhere(t, func(tpl *models.Template) bool { return !tpl.IsFree })
}

func (a *testApp) templateIDWhere(t *testing.T, match func(*models.Template) bool) int64 {
	t.Helper()
	all, err := a.templates.ListAll(context.Background())
	require.NoError(t, err)
	for _, tpl := range all {
		if match(tpl) {
			return tpl.ID
		}
	}
	t.Fatal("no matching template in the seeded catalog")
	return 0
}

// purchaseToken walks the order plus verify steps and returns a consumable
// token id.
func (a *testApp) purchaseToken(t *testing.T, token string, templateID int64) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/payments/orders", token, map[string]any{"template_id": templateID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeAs[orderResponse](t, rec)

	paymentID := fmt.Sprintf("pay_for_%d", order.TokenID)
	a.gateway.setPaymentStatus(paymentID, "captured")
	rec = a.do(t, http.MethodPost, "/api/payments/verify", token, map[string]any{
		"token_id":            order.TokenID,
		"razorpay_payment_id": paymentID,
		"razorpay_order_id":   order.OrderID,
		"razorpay_signature":  "valid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decodeAs[tokenResponse](t, rec)
	require.True(t, verified.CanUse)
	return order.TokenID
}

// startGeneration posts the multipart request with valid photos for the mode.
func (a *testApp) startGeneration(t *testing.T, token string, templateID int64, mode models.GenerationMode) generationResponse {
	t.Helper()
	fields := map[string]string{
		"template_id": fmt.Sprintf("%d", templateID),
		"mode":        string(mode),
	}
	files := map[string][][]byte{}
	if mode == models.ModeCouple {
		files["couple_image"] = [][]byte{tinyPNG()}
	} else {
		files["user_images"] = [][]byte{tinyPNG()}
		files["partner_images"] = [][]byte{tinyPNG()}
	}
	rec := a.doMultipart(t, token, fields, files)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decodeAs[generationResponse](t, rec)
}

func (a *testApp) doMultipart(t *testing.T, token string, fields map[string]string, files map[string][][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for field, blobs := range files {
		for i, blob := range blobs {
			part, err := writer.CreateFormFile(field, fmt.Sprintf("%s-%d.png", field, i))
			require.NoError(t, err)
			_, err = part.Write(blob)
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generations", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// waitForStatus polls the status endpoint until the generation settles.
func (a *testApp) waitForStatus(t *testing.T, token string, id int64, want models.GenerationStatus) generationStatusResponse {
	t.Helper()
	var last generationStatusResponse
	require.Eventually(t, func() bool {
		rec := a.do(t, http.MethodGet, fmt.Sprintf("/api/generations/%d/status", id), token, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		last = decodeAs[generationStatusResponse](t, rec)
		return last.Status == string(want)
	}, 3*time.Second, 10*time.Millisecond)
	return last
}

// fetchFile turns an output URL back into a router request.
func (a *testApp) fetchFile(t *testing.T, rawURL string) *httptest.ResponseRecorder {
	t.Helper()
	path := strings.TrimPrefix(rawURL, a.cfg.PublicBaseURL)
	require.True(t, strings.HasPrefix(path, "/files/"), "unexpected url %q", rawURL)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

var (
	tinyPNGOnce  sync.Once
	tinyPNGBytes []byte
	tinyJPGOnce  sync.Once
	tinyJPGBytes []byte
)

func tinyPNG() []byte {
	tinyPNGOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
			panic(err)
		}
		tinyPNGBytes = buf.Bytes()
	})
	return tinyPNGBytes
}

func tinyJPG() []byte {
	tinyJPGOnce.Do(func() {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
			panic(err)
		}
		tinyJPGBytes = buf.Bytes()
	})
	return tinyJPGBytes
}

// stubGateway mirrors the Razorpay surface; signatures verify iff the
// literal string "valid" is presented.
type stubGateway struct {
	mu       sync.Mutex
	orderSeq int
	refunds  int
	payments map[string]*razorpay.Payment
}

func newStubGateway() *stubGateway {
	return &stubGateway{payments: make(map[string]*razorpay.Payment)}
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderSeq++
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_%d", g.orderSeq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[paymentID]; ok {
		return p, nil
	}
	return &razorpay.Payment{ID: paymentID, Status: "captured"}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == "valid"
}

func (g *stubGateway) Refund(ctx context.Context, paymentID string, amount int, notes map[string]string) (*razorpay.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return &razorpay.Refund{
		ID:        fmt.Sprintf("rfnd_%d", g.refunds),
		PaymentID: paymentID,
		Amount:    amount,
		Status:    "processed",
	}, nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) setPaymentStatus(paymentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &razorpay.Payment{ID: paymentID, Status: status}
}

// stubGenerator writes real artifacts into storage so the file routes can
// serve what the API links to.
type stubGenerator struct {
	files storage.Storage
	mu    sync.Mutex
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, bundle models.InputBundle, watermark bool) (*gemini.Result, error) {
	g.mu.Lock()
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ref, err := g.files.Save(ctx, "generated", tinyPNG(), "image/png")
	if err != nil {
		return nil, err
	}
	result := &gemini.Result{Path: ref}
	if watermark {
		wmRef, err := g.files.Save(ctx, "watermarked", tinyJPG(), "image/jpeg")
		if err != nil {
			return nil, err
		}
		result.WatermarkedPath = wmRef
	}
	return result, nil
}

func (g *stubGenerator) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

type stubGoogle struct {
	claims *auth.GoogleClaims
	err    error
}

func (s *stubGoogle) Verify(ctx context.Context, idToken string) (*auth.GoogleClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}
