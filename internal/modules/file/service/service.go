package service

import (
	"context"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/tdnguyen/bangtin/internal/entity"
	"github.com/tdnguyen/bangtin/internal/modules/file/dto"
	"github.com/tdnguyen/bangtin/internal/modules/file/repository"
	"github.com/tdnguyen/bangtin/pkg/apperror"
	"github.com/tdnguyen/bangtin/pkg/storage"
)

type FileService interface {
	Upload(ctx context.Context, ref entity.ItemRef, files []*multipart.FileHeader) ([]dto.FileResponse, error)
	ListByParent(ctx context.Context, ref entity.ItemRef) ([]dto.FileResponse, error)
	Delete(ctx context.Context, id uint) error
	DeleteAllForParent(ctx context.Context, ref entity.ItemRef) error
}

type fileService struct {
	repo        repository.FileRepository
	fileStorage storage.FileStorage
}

func NewFileService(repo repository.FileRepository, fileStorage storage.FileStorage) FileService {
	return &fileService{
		repo:        repo,
		fileStorage: fileStorage,
	}
}

func (s *fileService) Upload(ctx context.Context, ref entity.ItemRef, files []*multipart.FileHeader) ([]dto.FileResponse, error) {
	exists, err := s.repo.ParentExists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound(string(ref.Kind) + " not found")
	}

	uploaded := make([]dto.FileResponse, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}

		info, err := s.fileStorage.Upload(ctx, f, header.Filename, header.Header.Get("Content-Type"), header.Size)
		f.Close()
		if err != nil {
			return nil, apperror.New(http.StatusInternalServerError, "failed to upload file to storage", apperror.ErrStorage)
		}

		file := entity.File{
			FileID:        info.FileID,
			FileName:      info.FileName,
			FileType:      info.FileType,
			FileSize:      info.FileSize,
			ViewLink:      info.ViewLink,
			DownloadLink:  info.DownloadLink,
			ThumbnailLink: info.ThumbnailLink,
			RelatedType:   ref.Kind,
			RelatedID:     ref.ID,
		}

		if err := s.repo.Create(ctx, &file); err != nil {
			// The object is already in the drive; the row is the source
			// of truth, so try to clean the orphan up before failing.
			if delErr := s.fileStorage.Delete(ctx, info.FileID); delErr != nil {
				log.Printf("failed to remove orphaned storage object %s: %v", info.FileID, delErr)
			}
			return nil, err
		}

		uploaded = append(uploaded, toResponse(&file))
	}

	return uploaded, nil
}

func (s *fileService) ListByParent(ctx context.Context, ref entity.ItemRef) ([]dto.FileResponse, error) {
	files, err := s.repo.FindByRelated(ctx, ref)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.FileResponse, 0, len(files))
	for i := range files {
		responses = append(responses, toResponse(&files[i]))
	}
	return responses, nil
}

// Delete removes the external object first; if the provider call fails
// the row is kept so the attachment stays consistent and retryable.
func (s *fileService) Delete(ctx context.Context, id uint) error {
	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if file == nil {
		return apperror.NotFound("file not found")
	}

	if err := s.fileStorage.Delete(ctx, file.FileID); err != nil {
		return apperror.New(http.StatusInternalServerError, "failed to delete file from storage", apperror.ErrStorage)
	}

	return s.repo.Delete(ctx, file)
}

// DeleteAllForParent runs when the parent item is being removed.
// External deletions are best-effort: a storage failure is logged and
// must not block the cascade.
func (s *fileService) DeleteAllForParent(ctx context.Context, ref entity.ItemRef) error {
	files, err := s.repo.FindByRelated(ctx, ref)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	for i := range files {
		if err := s.fileStorage.Delete(ctx, files[i].FileID); err != nil {
			log.Printf("failed to delete storage object %s: %v", files[i].FileID, err)
		}
	}

	return s.repo.DeleteAllForParent(ctx, ref)
}

func toResponse(file *entity.File) dto.FileResponse {
	return dto.FileResponse{
		ID:            file.ID,
		FileID:        file.FileID,
		FileName:      file.FileName,
		FileType:      file.FileType,
		FileSize:      file.FileSize,
		ViewLink:      file.ViewLink,
		DownloadLink:  file.DownloadLink,
		ThumbnailLink: file.ThumbnailLink,
		RelatedType:   string(file.RelatedType),
		RelatedID:     file.RelatedID,
	}
}
