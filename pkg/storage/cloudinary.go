package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// FileInfo describes an object held by the external drive. FileID is the
// provider's opaque identifier; everything else is display metadata.
type FileInfo struct {
	FileID        string
	FileName      string
	FileType      string
	FileSize      int64
	ViewLink      string
	DownloadLink  string
	ThumbnailLink *string
}

// FileStorage defines the contract for the external file storage provider
// (Cloudinary implementation).
type FileStorage interface {
	// Upload stores the object and returns its metadata.
	Upload(ctx context.Context, r io.Reader, fileName, contentType string, size int64) (*FileInfo, error)
	// Delete removes the object identified by fileID.
	Delete(ctx context.Context, fileID string) error
}

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a Cloudinary-backed FileStorage. It expects
// CLOUDINARY_URL or the individual CLOUDINARY_* variables to be configured
// in the environment (see Cloudinary Go SDK docs).
func NewCloudinaryStorage(folder string) (FileStorage, error) {
	// cloudinary.New() reads CLOUDINARY_URL from the environment.
	cld, err := cloudinary.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld, folder: folder}, nil
}

func (s *cloudinaryStorage) Upload(ctx context.Context, r io.Reader, fileName, contentType string, size int64) (*FileInfo, error) {
	if s == nil || s.cld == nil {
		return nil, fmt.Errorf("cloudinary storage is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	publicID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), strings.TrimSuffix(fileName, filepath.Ext(fileName)))

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       publicID,
		UseFilename:    api.Bool(true),
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to cloudinary: %w", err)
	}

	if resp.SecureURL == "" {
		return nil, fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	info := &FileInfo{
		FileID:       resp.PublicID,
		FileName:     fileName,
		FileType:     contentType,
		FileSize:     size,
		ViewLink:     resp.SecureURL,
		DownloadLink: attachmentURL(resp.SecureURL),
	}

	if thumb := thumbnailURL(resp.SecureURL, contentType); thumb != "" {
		info.ThumbnailLink = &thumb
	}

	return info, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, fileID string) error {
	if s == nil || s.cld == nil {
		return fmt.Errorf("cloudinary storage is not initialized")
	}

	// Invalidate: true clears the CDN cache as well.
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   fileID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}

// attachmentURL rewrites a delivery URL so the browser downloads instead of
// rendering inline. Cloudinary honors the fl_attachment delivery flag.
func attachmentURL(secureURL string) string {
	return strings.Replace(secureURL, "/upload/", "/upload/fl_attachment/", 1)
}

// thumbnailURL produces a small preview for image types, empty otherwise.
func thumbnailURL(secureURL, contentType string) string {
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}
	return strings.Replace(secureURL, "/upload/", "/upload/c_thumb,w_200,h_200/", 1)
}
