package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserReadStatus marks one item as read by one user. Absence of a row
// means unread. The (user_id, item_id, item_type) triple is unique so
// repeated marks upsert instead of duplicating.
type UserReadStatus struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_read_user_item" json:"userId"`
	ItemID   uint      `gorm:"not null;uniqueIndex:idx_read_user_item" json:"itemId"`
	ItemType Kind      `gorm:"size:20;not null;uniqueIndex:idx_read_user_item" json:"itemType"`
	ReadAt   time.Time `gorm:"autoCreateTime" json:"readAt"`
}

func (UserReadStatus) TableName() string {
	return "user_read_status"
}
