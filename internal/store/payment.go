package store

import (
	"context" // Context for DB operations
	"errors"  // Error values
	"fmt"     // Error formatting

	"gorm.io/gorm" // GORM ORM library

	"authpay/internal/domain" // Importing domain models
)

// ErrInvalidPayment rejects out-of-range amounts and unknown enum values at
// the store boundary.
var ErrInvalidPayment = errors.New("invalid payment")

// PaymentStore is the payment-intent ledger. Records are created PENDING and
// only ever move to a terminal state; COMPLETED and FAILED are sinks.
type PaymentStore struct {
	db *gorm.DB
}

// NewPaymentStore wraps a gorm handle
func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Create inserts a new payment in PENDING, validating the closed enums and
// the amount before anything touches the database.
func (s *PaymentStore) Create(ctx context.Context, p *domain.Payment) error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if !p.Method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, p.Method)
	}
	if p.Method == domain.MethodMobileMoney && (p.PhoneNumber == nil || *p.PhoneNumber == "") {
		return fmt.Errorf("%w: phone number required for mobile money", ErrInvalidPayment)
	}
	p.Status = domain.StatusPending // Creation always lands in PENDING
	return s.db.WithContext(ctx).Create(p).Error
}

// FindByID returns the payment with the given id, or ErrNotFound.
func (s *PaymentStore) FindByID(ctx context.Context, id uint) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkFailed moves a PENDING payment to FAILED after a rejected initiation.
// A record already in a terminal state is left untouched.
func (s *PaymentStore) MarkFailed(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("status", domain.StatusFailed).Error
}

// SetCheckoutRequestID stores the provider correlation id returned by a
// successful push acknowledgement, so the later callback can find the record.
func (s *PaymentStore) SetCheckoutRequestID(ctx context.Context, id uint, checkoutRequestID string) error {
	return s.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Update("checkout_request_id", checkoutRequestID).Error
}

// SetTransactionID stores the provider transaction reference (Stripe intent id)
// against the local record immediately after initiation.
func (s *PaymentStore) SetTransactionID(ctx context.Context, id uint, transactionID string) error {
	return s.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Update("transaction_id", transactionID).Error
}

// ApplyCallback applies an asynchronous provider result to the record matching
// checkoutRequestID. The transition is conditional on the record still being
// PENDING, so duplicate or late deliveries are dropped (applied=false) rather
// than regressing a terminal record. Unknown references return ErrNotFound.
func (s *PaymentStore) ApplyCallback(ctx context.Context, checkoutRequestID string, success bool, receipt string) (*domain.Payment, bool, error) {
	var (
		payment domain.Payment
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target := domain.StatusFailed
		if success {
			target = domain.StatusCompleted
		}
		updates := map[string]any{"status": target}
		if success && receipt != "" {
			updates["transaction_id"] = receipt
		}
		// Conditional transition: only a PENDING record may move.
		res := tx.Model(&domain.Payment{}).
			Where("checkout_request_id = ? AND status = ?", checkoutRequestID, domain.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0
		// Re-read so the caller sees the current (possibly untouched) state.
		if err := tx.Where("checkout_request_id = ?", checkoutRequestID).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &payment, applied, nil
}
