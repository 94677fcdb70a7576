package domain

// User Model
type User struct {
	ID                    uint   `gorm:"primaryKey" json:"id"`                       // Primary key
	Email                 string `gorm:"size:255;uniqueIndex;not null" json:"email"` // Unique email, immutable once set
	PasswordHash          string `gorm:"size:255;not null" json:"-"`                 // Bcrypt hash, never serialized
	IsActive              bool   `gorm:"default:true;not null" json:"is_active"`     // Active flag
	PasswordLoginDisabled bool   `gorm:"default:false;not null" json:"-"`            // Set on federated signup; password login rejected
	CreatedAt             int64  `gorm:"autoCreateTime:milli" json:"-"`              // Timestamp of creation in milliseconds
}
