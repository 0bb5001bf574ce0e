package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// Notification stores in-app notification history scoped to users. Image and
// delivery timestamp are snapshotted so display never re-queries the
// product/order.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title       string                 `gorm:"column:title;type:text;not null"`
	Message     string                 `gorm:"column:message;type:text;not null"`
	ImageURL    *string                `gorm:"column:image_url;type:text"`
	DeliveredAt *time.Time             `gorm:"column:delivered_at;type:timestamptz"`
	ReadAt      *time.Time             `gorm:"column:read_at;type:timestamptz"`
	CreatedAt   time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}
