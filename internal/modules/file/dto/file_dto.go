package dto

// UploadForm carries the multipart fields linking the upload to its
// parent item.
type UploadForm struct {
	RelatedType string `form:"relatedType" binding:"required,oneof=notification regulation"`
	RelatedID   uint   `form:"relatedId" binding:"required"`
}

type FileResponse struct {
	ID            uint    `json:"id"`
	FileID        string  `json:"fileId"`
	FileName      string  `json:"fileName"`
	FileType      string  `json:"fileType"`
	FileSize      int64   `json:"fileSize"`
	ViewLink      string  `json:"viewLink"`
	DownloadLink  string  `json:"downloadLink"`
	ThumbnailLink *string `json:"thumbnailLink"`
	RelatedType   string  `json:"relatedType"`
	RelatedID     uint    `json:"relatedId"`
}
