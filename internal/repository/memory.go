package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

// Memory is an in-memory store with the same semantics as the MySQL
// repositories, including the conditional transitions. A single mutex stands
// in for row locking, so the reservation guarantees hold here too. It backs
// tests and DSN-less development runs.
type Memory struct {
	mu sync.Mutex

	userSeq     int64
	templateSeq int64
	tokenSeq    int64
	genSeq      int64

	users       map[int64]*models.User
	templates   map[int64]*models.Template
	tokens      map[int64]*models.PaymentToken
	generations map[int64]*models.Generation
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]*models.User),
		templates:   make(map[int64]*models.Template),
		tokens:      make(map[int64]*models.PaymentToken),
		generations: make(map[int64]*models.Generation),
	}
}

func (m *Memory) Users() *MemoryUsers             { return &MemoryUsers{m} }
func (m *Memory) Templates() *MemoryTemplates     { return &MemoryTemplates{m} }
func (m *Memory) Tokens() *MemoryTokens           { return &MemoryTokens{m} }
func (m *Memory) Generations() *MemoryGenerations { return &MemoryGenerations{m} }

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneTemplate(t *models.Template) *models.Template {
	c := *t
	return &c
}

func cloneToken(t *models.PaymentToken) *models.PaymentToken {
	c := *t
	return &c
}

func cloneGeneration(g *models.Generation) *models.Generation {
	c := *g
	return &c
}

// tokenHeldLocked reports whether an in-flight generation already references
// the token. Callers hold m.mu.
func (m *Memory) tokenHeldLocked(tokenID int64) bool {
	for _, g := range m.generations {
		if g.PaymentTokenID != nil && *g.PaymentTokenID == tokenID &&
			(g.Status == models.GenerationPending || g.Status == models.GenerationProcessing) {
			return true
		}
	}
	return false
}

// consumableLocked returns the user's consumable, unheld tokens for the
// template, oldest first. Callers hold m.mu.
func (m *Memory) consumableLocked(userID, templateID int64) []*models.PaymentToken {
	var out []*models.PaymentToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.TemplateID == templateID && t.Consumable() && !m.tokenHeldLocked(t.ID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type MemoryUsers struct{ m *Memory }

func (s *MemoryUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.userSeq++
	c := cloneUser(user)
	c.ID = s.m.userSeq
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.m.users[c.ID] = c
	*user = *c
	return cloneUser(c), nil
}

func (s *MemoryUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *MemoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *MemoryUsers) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *MemoryUsers) UpdateProfile(ctx context.Context, userID int64, fullName, picture string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[userID]; ok {
		if fullName != "" {
			u.FullName = fullName
		}
		if picture != "" {
			u.ProfilePicture = picture
		}
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryUsers) LinkGoogle(ctx context.Context, userID int64, googleID, picture string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[userID]; ok {
		u.GoogleID = googleID
		if picture != "" {
			u.ProfilePicture = picture
		}
		u.IsVerified = true
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryUsers) GrantFreeCredits(ctx context.Context, userID int64, delta int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[userID]; ok {
		u.FreeCreditsRemaining += delta
		if u.FreeCreditsRemaining < 0 {
			u.FreeCreditsRemaining = 0
		}
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryUsers) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[userID]; ok {
		u.IsSubscribed = subscribed
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryUsers) List(ctx context.Context) ([]*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]*models.User, 0, len(s.m.users))
	for _, u := range s.m.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryTemplates struct{ m *Memory }

func (s *MemoryTemplates) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.templates[id]; ok {
		return cloneTemplate(t), nil
	}
	return nil, nil
}

func (s *MemoryTemplates) ListActive(ctx context.Context) ([]*models.Template, error) {
	return s.list(func(t *models.Template) bool { return t.IsActive && !t.IsArchived })
}

func (s *MemoryTemplates) ListAll(ctx context.Context) ([]*models.Template, error) {
	return s.list(func(*models.Template) bool { return true })
}

func (s *MemoryTemplates) list(keep func(*models.Template) bool) ([]*models.Template, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*models.Template
	for _, t := range s.m.templates {
		if keep(t) {
			out = append(out, cloneTemplate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder == out[j].DisplayOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (s *MemoryTemplates) Create(ctx context.Context, t *models.Template) (*models.Template, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.templateSeq++
	c := cloneTemplate(t)
	c.ID = s.m.templateSeq
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.m.templates[c.ID] = c
	*t = *c
	return cloneTemplate(c), nil
}

func (s *MemoryTemplates) Update(ctx context.Context, t *models.Template) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.templates[t.ID]; ok {
		c := cloneTemplate(t)
		c.CreatedAt = existing.CreatedAt
		c.UsageCount = existing.UsageCount
		c.UpdatedAt = time.Now().UTC()
		s.m.templates[c.ID] = c
	}
	return nil
}

func (s *MemoryTemplates) Archive(ctx context.Context, id int64) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.templates[id]
	if !ok || t.IsArchived {
		return false, nil
	}
	now := time.Now().UTC()
	t.IsArchived = true
	t.IsActive = false
	t.ArchivedAt = &now
	t.UpdatedAt = now
	return true, nil
}

func (s *MemoryTemplates) IncrementUsage(ctx context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.templates[id]; ok {
		t.UsageCount++
	}
	return nil
}

type MemoryTokens struct{ m *Memory }

func (s *MemoryTokens) Create(ctx context.Context, token *models.PaymentToken) (*models.PaymentToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.tokenSeq++
	c := cloneToken(token)
	c.ID = s.m.tokenSeq
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.m.tokens[c.ID] = c
	*token = *c
	return cloneToken(c), nil
}

func (s *MemoryTokens) FindByID(ctx context.Context, id int64) (*models.PaymentToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.tokens[id]; ok {
		return cloneToken(t), nil
	}
	return nil, nil
}

func (s *MemoryTokens) FindByIDForUser(ctx context.Context, id, userID int64) (*models.PaymentToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.tokens[id]; ok && t.UserID == userID {
		return cloneToken(t), nil
	}
	return nil, nil
}

func (s *MemoryTokens) SetOrder(ctx context.Context, tokenID int64, orderID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.tokens[tokenID]; ok {
		t.OrderID = orderID
	}
	return nil
}

func (s *MemoryTokens) MarkCompleted(ctx context.Context, tokenID int64, paymentID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tokens[tokenID]
	if !ok || (t.PaymentStatus != models.PaymentPending && t.PaymentStatus != models.PaymentFailed) {
		return false, nil
	}
	t.PaymentStatus = models.PaymentCompleted
	t.PaymentID = paymentID
	return true, nil
}

func (s *MemoryTokens) MarkPaymentFailed(ctx context.Context, tokenID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if t, ok := s.m.tokens[tokenID]; ok && t.PaymentStatus == models.PaymentPending {
		t.PaymentStatus = models.PaymentFailed
	}
	return nil
}

func (s *MemoryTokens) MarkUsed(ctx context.Context, tokenID int64) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tokens[tokenID]
	if !ok || !t.Consumable() {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = models.TokenUsed
	t.UsedAt = &now
	return true, nil
}

func (s *MemoryTokens) MarkRefunded(ctx context.Context, tokenID int64, refundID, reason string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tokens[tokenID]
	if !ok || t.PaymentStatus != models.PaymentCompleted {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = models.TokenRefunded
	t.PaymentStatus = models.PaymentRefunded
	t.RefundID = refundID
	t.RefundReason = reason
	t.RefundedAt = &now
	return true, nil
}

func (s *MemoryTokens) ListByUser(ctx context.Context, userID int64) ([]*models.PaymentToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*models.PaymentToken
	for _, t := range s.m.tokens {
		if t.UserID == userID {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryTokens) CountConsumable(ctx context.Context, userID, templateID int64) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.m.consumableLocked(userID, templateID)), nil
}

type MemoryGenerations struct{ m *Memory }

func (s *MemoryGenerations) CreateWithFreeCredit(ctx context.Context, gen *models.Generation) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[gen.UserID]
	if !ok || u.FreeCreditsRemaining <= 0 {
		return false, nil
	}
	u.FreeCreditsRemaining--
	u.UpdatedAt = time.Now().UTC()
	s.insertLocked(gen)
	return true, nil
}

func (s *MemoryGenerations) CreateWithPaidToken(ctx context.Context, gen *models.Generation) (*models.PaymentToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	candidates := s.m.consumableLocked(gen.UserID, gen.TemplateID)
	if len(candidates) == 0 {
		return nil, nil
	}
	token := candidates[0]
	tokenID := token.ID
	gen.PaymentTokenID = &tokenID
	s.insertLocked(gen)
	return cloneToken(token), nil
}

func (s *MemoryGenerations) insertLocked(gen *models.Generation) {
	s.m.genSeq++
	c := cloneGeneration(gen)
	c.ID = s.m.genSeq
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.m.generations[c.ID] = c
	*gen = *c
}

func (s *MemoryGenerations) FindByID(ctx context.Context, id int64) (*models.Generation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if g, ok := s.m.generations[id]; ok {
		return cloneGeneration(g), nil
	}
	return nil, nil
}

func (s *MemoryGenerations) FindByIDForUser(ctx context.Context, id, userID int64) (*models.Generation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if g, ok := s.m.generations[id]; ok && g.UserID == userID {
		return cloneGeneration(g), nil
	}
	return nil, nil
}

func (s *MemoryGenerations) ListByUser(ctx context.Context, userID int64) ([]*models.Generation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*models.Generation
	for _, g := range s.m.generations {
		if g.UserID == userID {
			out = append(out, cloneGeneration(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryGenerations) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.m.generations[id]
	if !ok || g.Status != models.GenerationPending {
		return false, nil
	}
	g.Status = models.GenerationProcessing
	return true, nil
}

func (s *MemoryGenerations) MarkCompleted(ctx context.Context, id int64, generatedPath, watermarkedPath string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.m.generations[id]
	if !ok || g.Status != models.GenerationProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	g.Status = models.GenerationCompleted
	g.GeneratedPath = generatedPath
	g.WatermarkedPath = watermarkedPath
	g.CompletedAt = &now
	return true, nil
}

func (s *MemoryGenerations) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.m.generations[id]
	if !ok || g.Status != models.GenerationProcessing {
		return false, nil
	}
	g.Status = models.GenerationFailed
	g.ErrorMessage = message
	return true, nil
}

func (s *MemoryGenerations) Delete(ctx context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.generations, id)
	return nil
}
