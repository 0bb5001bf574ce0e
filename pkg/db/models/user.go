package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// User is any party a sale can touch: buyer, seller, or swap spot operator.
type User struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Role            enums.UserRole `gorm:"column:role;type:user_role;not null"`
	Email           string         `gorm:"column:email;not null"`
	DisplayName     string         `gorm:"column:display_name;not null"`
	StripeAccountID *string        `gorm:"column:stripe_account_id"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
