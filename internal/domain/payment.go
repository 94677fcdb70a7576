package domain

// PaymentStatus is the closed set of ledger states.
type PaymentStatus string

// PaymentMethod is the closed set of supported payment rails.
type PaymentMethod string

const (
	StatusPending   PaymentStatus = "PENDING"   // Initial state, set at creation
	StatusCompleted PaymentStatus = "COMPLETED" // Terminal: provider reported success
	StatusFailed    PaymentStatus = "FAILED"    // Terminal: initiation rejected or provider reported failure

	MethodMobileMoney PaymentMethod = "MOBILE_MONEY" // M-Pesa STK push
	MethodCard        PaymentMethod = "CARD"         // Stripe hosted intent
)

// Valid reports whether the status is one of the known states.
func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// Terminal reports whether the status is a sink; terminal records never transition again.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the method is one of the known rails.
func (m PaymentMethod) Valid() bool {
	return m == MethodMobileMoney || m == MethodCard
}

// Payment Model: one attempt to move money through a provider.
type Payment struct {
	ID                uint          `gorm:"primaryKey" json:"id"`                     // Primary key
	Amount            int64         `gorm:"not null" json:"amount"`                   // Positive amount; unit semantics are per provider
	Currency          string        `gorm:"size:10;default:KES" json:"currency"`      // ISO currency code
	Method            PaymentMethod `gorm:"size:50;not null" json:"method"`           // MOBILE_MONEY or CARD
	Status            PaymentStatus `gorm:"size:50;default:PENDING" json:"status"`    // PENDING, COMPLETED, FAILED
	TransactionID     *string       `gorm:"size:255;index" json:"transaction_id"`     // M-Pesa receipt or Stripe intent id, nil until acknowledged
	CheckoutRequestID *string       `gorm:"size:255;index" json:"-"`                  // M-Pesa correlation id for the async callback
	PhoneNumber       *string       `gorm:"size:50" json:"phone_number,omitempty"`    // Payer MSISDN, mobile money only
	CreatedAt         int64         `gorm:"autoCreateTime:milli" json:"-"`            // Timestamp of creation in milliseconds
}
