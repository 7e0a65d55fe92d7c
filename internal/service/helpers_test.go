package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/gemini"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/razorpay"
	"github.com/mckhtech/wedding-plannera-ai/internal/repository"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	cfg         config.Config
	log         *slog.Logger
	mem         *repository.Memory
	gateway     *fakeGateway
	generator   *fakeGenerator
	artifacts   *memArtifacts
	access      *AccessService
	payments    *PaymentService
	templates   *TemplateService
	users       *UserService
	generations *GenerationService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		AppEnv:              config.EnvDevelopment,
		DefaultCurrency:     "INR",
		FreeCreditsOnSignup: 2,
		WorkerCount:         2,
		QueueSize:           16,
		WatermarkText:       "PREVIEW",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := repository.NewMemory()
	gateway := newFakeGateway()
	generator := &fakeGenerator{}
	artifacts := newMemArtifacts()

	access := NewAccessService(mem.Tokens(), mem.Generations())
	payments := NewPaymentService(cfg, log, mem.Tokens(), gateway)
	generations := NewGenerationService(cfg, log, access, payments,
		mem.Templates(), mem.Generations(), mem.Tokens(), generator, artifacts)

	return &testEnv{
		cfg:         cfg,
		log:         log,
		mem:         mem,
		gateway:     gateway,
		generator:   generator,
		artifacts:   artifacts,
		access:      access,
		payments:    payments,
		templates:   NewTemplateService(cfg, mem.Templates()),
		users:       NewUserService(mem.Users()),
		generations: generations,
	}
}

// drainOne pulls the next queued job and runs it synchronously, standing in
// for a worker.
func (e *testEnv) drainOne(t *testing.T) {
	t.Helper()
	select {
	case job := <-e.generations.jobs:
		e.generations.process(context.Background(), e.log, job)
	default:
		t.Fatal("no generation job queued")
	}
}

func (e *testEnv) seedUser(t *testing.T, credits int) *models.User {
	t.Helper()
	user := &models.User{
		Email:                fmt.Sprintf("user%d@example.com", time.Now().UnixNano()),
		FullName:             "Test User",
		AuthProvider:         models.ProviderEmail,
		IsActive:             true,
		FreeCreditsRemaining: credits,
	}
	created, err := e.mem.Users().Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedFreeTemplate(t *testing.T) *models.Template {
	t.Helper()
	tpl := &models.Template{
		Name:     "Garden Romance",
		Prompt:   "a couple in a sunlit garden",
		IsFree:   true,
		Currency: "INR",
		IsActive: true,
	}
	created, err := e.mem.Templates().Create(context.Background(), tpl)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedPaidTemplate(t *testing.T, price int) *models.Template {
	t.Helper()
	tpl := &models.Template{
		Name:            "Royal Palace",
		Prompt:          "a couple on palace steps",
		PriceMinorUnits: price,
		Currency:        "INR",
		IsActive:        true,
	}
	created, err := e.mem.Templates().Create(context.Background(), tpl)
	require.NoError(t, err)
	return created
}

// seedToken inserts a token directly in the given state, bypassing the
// payment flow.
func (e *testEnv) seedToken(t *testing.T, userID, templateID int64, payment models.PaymentStatus, status models.TokenStatus, createdAt time.Time) *models.PaymentToken {
	t.Helper()
	token := &models.PaymentToken{
		UserID:        userID,
		TemplateID:    templateID,
		OrderID:       "order_seed",
		PaymentID:     "pay_seed",
		PaymentStatus: payment,
		Status:        status,
		AmountPaid:    19900,
		Currency:      "INR",
		CreatedAt:     createdAt,
	}
	created, err := e.mem.Tokens().Create(context.Background(), token)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedConsumableToken(t *testing.T, userID, templateID int64) *models.PaymentToken {
	t.Helper()
	return e.seedToken(t, userID, templateID, models.PaymentCompleted, models.TokenUnused, time.Now().UTC())
}

func flexibleBundle() models.InputBundle {
	return models.InputBundle{
		Mode:          models.ModeFlexible,
		UserImages:    []string{"inputs/user1.jpg"},
		PartnerImages: []string{"inputs/partner1.jpg"},
	}
}

func coupleBundle() models.InputBundle {
	return models.InputBundle{
		Mode:        models.ModeCouple,
		CoupleImage: "inputs/couple.jpg",
	}
}

// fakeGateway is an in-memory PaymentGateway. Signatures verify iff the
// literal string "valid" is presented.
type fakeGateway struct {
	mu          sync.Mutex
	orderSeq    int
	refundSeq   int
	fetchCalls  int
	orderErr    error
	fetchErr    error
	refundErr   error
	payments    map[string]*razorpay.Payment
	refunded    []string
	lastNotes   map[string]string
	lastReceipt string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*razorpay.Payment)}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orderSeq++
	g.lastNotes = notes
	g.lastReceipt = receipt
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_%d", g.orderSeq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if p, ok := g.payments[paymentID]; ok {
		return p, nil
	}
	return &razorpay.Payment{ID: paymentID, Status: "captured"}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == "valid"
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amount int, notes map[string]string) (*razorpay.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refundSeq++
	g.refunded = append(g.refunded, paymentID)
	return &razorpay.Refund{
		ID:        fmt.Sprintf("rfnd_%d", g.refundSeq),
		PaymentID: paymentID,
		Amount:    amount,
		Status:    "processed",
	}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) setPaymentStatus(paymentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &razorpay.Payment{ID: paymentID, Status: status}
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchCalls
}

func (g *fakeGateway) refundedPayments() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.refunded...)
}

// fakeGenerator is an in-memory Generator.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, bundle models.InputBundle, watermark bool) (*gemini.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	res := &gemini.Result{Path: fmt.Sprintf("generated/out%d.png", n)}
	if watermark {
		res.WatermarkedPath = fmt.Sprintf("watermarked/out%d.jpg", n)
	}
	return res, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// memArtifacts is an in-memory storage.Storage.
type memArtifacts struct {
	mu    sync.Mutex
	seq   int
	files map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{files: make(map[string][]byte)}
}

func (m *memArtifacts) Save(ctx context.Context, category string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("%s/file%d", category, m.seq)
	m.files[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *memArtifacts) Fetch(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[ref]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, fmt.Errorf("not found: %s", ref)
}

func (m *memArtifacts) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, ref)
	return nil
}

func (m *memArtifacts) URLFor(ref string) string { return "http://files.test/" + ref }

func (m *memArtifacts) put(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[ref] = data
}

func (m *memArtifacts) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[ref]
	return ok
}
