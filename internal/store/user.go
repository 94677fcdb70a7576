package store

import (
	"context" // Context for DB operations
	"errors"  // Error matching

	"gorm.io/gorm" // GORM ORM library

	"authpay/internal/domain" // Importing domain models
)

// UserStore persists user identities. The email uniqueness invariant lives in
// the database index; a concurrent check-then-insert loser surfaces here as
// ErrDuplicate.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps a gorm handle
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByEmail returns the user with the given email, or ErrNotFound.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create persists a new user with the given password hash. The commit is the
// durability boundary: once Create returns, the record is on disk.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string, passwordLoginDisabled bool) (*domain.User, error) {
	user := domain.User{
		Email:                 email,
		PasswordHash:          passwordHash,
		IsActive:              true,
		PasswordLoginDisabled: passwordLoginDisabled,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &user, nil
}
