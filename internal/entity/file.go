package entity

import "time"

// File links an object held in the external drive to a notification or
// regulation. FileID is the provider's opaque identifier; the row is
// owned by the parent (RelatedType, RelatedID) and cascade-deleted with it.
type File struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	FileID        string    `gorm:"size:255;not null" json:"fileId"`
	FileName      string    `gorm:"size:255;not null" json:"fileName"`
	FileType      string    `gorm:"size:100" json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	ViewLink      string    `gorm:"type:text" json:"viewLink"`
	DownloadLink  string    `gorm:"type:text" json:"downloadLink"`
	ThumbnailLink *string   `gorm:"type:text" json:"thumbnailLink"`
	RelatedType   Kind      `gorm:"size:20;not null;index:idx_files_related" json:"relatedType"`
	RelatedID     uint      `gorm:"not null;index:idx_files_related" json:"relatedId"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
