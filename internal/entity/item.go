package entity

import (
	"time"

	"github.com/tdnguyen/bangtin/pkg/apperror"
)

// Kind discriminates the two item tables that share read tracking and
// attachments. It is the only value ever interpolated into a table
// identifier, and only through Table().
type Kind string

const (
	KindNotification Kind = "notification"
	KindRegulation   Kind = "regulation"
)

// ParseKind validates a client-supplied discriminator.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNotification, KindRegulation:
		return Kind(s), nil
	default:
		return "", apperror.New(400, "relatedType must be notification or regulation", apperror.ErrInvalidInput)
	}
}

// Table maps the kind to its backing table.
func (k Kind) Table() string {
	switch k {
	case KindRegulation:
		return "regulations"
	default:
		return "notifications"
	}
}

// ItemRef identifies one item of either kind. Application code passes
// refs around; the discriminator string only appears at the storage
// boundary.
type ItemRef struct {
	Kind Kind
	ID   uint
}

// Item is a row of the notifications or regulations table. Both tables
// share this shape; per-kind differences (allowlist, defaults, ordering)
// live in the item repository definitions.
//
// Date and UpdateDate are stored as YYYY-MM-DD strings so inclusive
// range filters reduce to lexicographic comparison. Rendering to
// DD/MM/YYYY happens in the DTO layer.
type Item struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Brief         string    `gorm:"type:text" json:"brief"`
	Content       string    `gorm:"type:text" json:"content"`
	Date          string    `gorm:"column:date;size:10;not null;index" json:"date"`
	UpdateDate    *string   `gorm:"column:update_date;size:10" json:"updateDate"`
	IsNew         bool      `gorm:"column:is_new;default:true" json:"isNew"`
	IsImportant   bool      `gorm:"column:is_important;default:false" json:"isImportant"`
	UseHTML       bool      `gorm:"column:use_html;default:false" json:"useHtml"`
	HasAttachment bool      `gorm:"column:has_attachment;default:false" json:"hasAttachment"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
