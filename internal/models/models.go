package models

import "time"

type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
)

// PaymentStatus tracks whether the money behind a token ever arrived.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// TokenStatus tracks whether a token's single use has been spent.
type TokenStatus string

const (
	TokenUnused   TokenStatus = "unused"
	TokenUsed     TokenStatus = "used"
	TokenRefunded TokenStatus = "refunded"
	TokenExpired  TokenStatus = "expired"
)

type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

type GenerationMode string

const (
	ModeFlexible GenerationMode = "flexible"
	ModeCouple   GenerationMode = "couple"
)

type User struct {
	ID                   int64
	Email                string
	FullName             string
	HashedPassword       string
	AuthProvider         AuthProvider
	GoogleID             string
	ProfilePicture       string
	IsActive             bool
	IsAdmin              bool
	IsVerified           bool
	IsSubscribed         bool
	FreeCreditsRemaining int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Template struct {
	ID              int64
	Name            string
	Description     string
	Prompt          string
	PreviewImage    string
	IsFree          bool
	PriceMinorUnits int
	Currency        string
	IsActive        bool
	IsArchived      bool
	ArchivedAt      *time.Time
	DisplayOrder    int
	UsageCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PaymentToken struct {
	ID            int64
	UserID        int64
	TemplateID    int64
	OrderID       string
	PaymentID     string
	PaymentStatus PaymentStatus
	Status        TokenStatus
	AmountPaid    int
	Currency      string
	UsedAt        *time.Time
	RefundID      string
	RefundReason  string
	RefundedAt    *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

// Consumable reports whether the token can back a new generation. Both axes
// must agree: the purchase is confirmed and the single use is still unspent.
func (t *PaymentToken) Consumable() bool {
	return t.Status == TokenUnused && t.PaymentStatus == PaymentCompleted
}

// InputBundle carries the reference images for one generation. Which fields
// are set depends on Mode; the rest of the system treats the refs as opaque
// storage locators.
type InputBundle struct {
	Mode          GenerationMode `json:"mode"`
	UserImages    []string       `json:"user_images,omitempty"`
	PartnerImages []string       `json:"partner_images,omitempty"`
	CoupleImage   string         `json:"couple_image,omitempty"`
}

// Refs returns every storage locator in the bundle, in prompt order.
func (b *InputBundle) Refs() []string {
	refs := make([]string, 0, len(b.UserImages)+len(b.PartnerImages)+1)
	refs = append(refs, b.UserImages...)
	refs = append(refs, b.PartnerImages...)
	if b.CoupleImage != "" {
		refs = append(refs, b.CoupleImage)
	}
	return refs
}

type Generation struct {
	ID              int64
	UserID          int64
	TemplateID      int64
	PaymentTokenID  *int64
	Mode            GenerationMode
	Inputs          InputBundle
	GeneratedPath   string
	WatermarkedPath string
	HasWatermark    bool
	Status          GenerationStatus
	ErrorMessage    string
	UsedFreeCredit  bool
	UsedPaidToken   bool
	CreatedAt       time.Time
	CompletedAt     *time.Time
}
