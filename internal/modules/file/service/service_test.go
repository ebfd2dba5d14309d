package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tdnguyen/bangtin/internal/entity"
	"github.com/tdnguyen/bangtin/internal/modules/file/repository"
	"github.com/tdnguyen/bangtin/pkg/apperror"
	"github.com/tdnguyen/bangtin/pkg/storage"
)

type fakeStorage struct {
	uploads   int
	deleted   []string
	uploadErr error
	deleteErr error
}

func (f *fakeStorage) Upload(_ context.Context, r io.Reader, fileName, contentType string, size int64) (*storage.FileInfo, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	f.uploads++
	id := fmt.Sprintf("obj-%d", f.uploads)
	return &storage.FileInfo{
		FileID:       id,
		FileName:     fileName,
		FileType:     contentType,
		FileSize:     size,
		ViewLink:     "https://drive.example/" + id,
		DownloadLink: "https://drive.example/" + id + "?dl=1",
	}, nil
}

func (f *fakeStorage) Delete(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return f.deleteErr
}

func newTestService(t *testing.T) (FileService, *fakeStorage, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entity.File{}))
	for _, kind := range []entity.Kind{entity.KindNotification, entity.KindRegulation} {
		require.NoError(t, db.Table(kind.Table()).AutoMigrate(&entity.Item{}))
	}

	fs := &fakeStorage{}
	svc := NewFileService(repository.NewFileRepository(db), fs)
	return svc, fs, db
}

func seedParent(t *testing.T, db *gorm.DB, kind entity.Kind) entity.ItemRef {
	t.Helper()

	item := entity.Item{Title: "t", Brief: "b", Content: "c", Date: "2024-03-01"}
	require.NoError(t, db.Table(kind.Table()).Create(&item).Error)
	return entity.ItemRef{Kind: kind, ID: item.ID}
}

func fileHeaders(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range names {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"]
}

func hasAttachment(t *testing.T, db *gorm.DB, ref entity.ItemRef) bool {
	t.Helper()

	var flag bool
	require.NoError(t, db.Table(ref.Kind.Table()).
		Select("has_attachment").
		Where("id = ?", ref.ID).
		Scan(&flag).Error)
	return flag
}

func TestUploadParentMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(),
		entity.ItemRef{Kind: entity.KindNotification, ID: 42},
		fileHeaders(t, "a.pdf"))
	require.Error(t, err)
	require.Equal(t, 404, apperror.MapErrorToStatus(err))
}

func TestUploadSetsAttachmentFlag(t *testing.T) {
	svc, fs, db := newTestService(t)
	ref := seedParent(t, db, entity.KindNotification)

	require.False(t, hasAttachment(t, db, ref))

	uploaded, err := svc.Upload(context.Background(), ref, fileHeaders(t, "a.pdf", "b.pdf"))
	require.NoError(t, err)
	require.Len(t, uploaded, 2)
	require.Equal(t, 2, fs.uploads)
	require.Equal(t, "a.pdf", uploaded[0].FileName)
	require.NotEmpty(t, uploaded[0].FileID)
	require.True(t, hasAttachment(t, db, ref))
}

func TestUploadStorageFailure(t *testing.T) {
	svc, fs, db := newTestService(t)
	ref := seedParent(t, db, entity.KindNotification)
	fs.uploadErr = errors.New("provider down")

	_, err := svc.Upload(context.Background(), ref, fileHeaders(t, "a.pdf"))
	require.Error(t, err)
	require.Equal(t, 500, apperror.MapErrorToStatus(err))
	require.False(t, hasAttachment(t, db, ref))
}

func TestDeleteLastFileResetsFlag(t *testing.T) {
	svc, fs, db := newTestService(t)
	ref := seedParent(t, db, entity.KindRegulation)

	uploaded, err := svc.Upload(context.Background(), ref, fileHeaders(t, "a.pdf", "b.pdf"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), uploaded[0].ID))
	require.True(t, hasAttachment(t, db, ref))

	require.NoError(t, svc.Delete(context.Background(), uploaded[1].ID))
	require.False(t, hasAttachment(t, db, ref))

	require.Equal(t, []string{uploaded[0].FileID, uploaded[1].FileID}, fs.deleted)
}

func TestDeleteStorageFailureKeepsRow(t *testing.T) {
	svc, fs, db := newTestService(t)
	ref := seedParent(t, db, entity.KindNotification)

	uploaded, err := svc.Upload(context.Background(), ref, fileHeaders(t, "a.pdf"))
	require.NoError(t, err)

	fs.deleteErr = errors.New("provider down")
	err = svc.Delete(context.Background(), uploaded[0].ID)
	require.Error(t, err)
	require.Equal(t, 500, apperror.MapErrorToStatus(err))

	// The row survives so the delete can be retried.
	files, err := svc.ListByParent(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, hasAttachment(t, db, ref))
}

func TestDeleteMissingFile(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Delete(context.Background(), 42)
	require.Equal(t, 404, apperror.MapErrorToStatus(err))
}

func TestDeleteAllForParentBestEffort(t *testing.T) {
	svc, fs, db := newTestService(t)
	ref := seedParent(t, db, entity.KindNotification)

	_, err := svc.Upload(context.Background(), ref, fileHeaders(t, "a.pdf", "b.pdf"))
	require.NoError(t, err)

	// Storage failures are logged but never block the cascade.
	fs.deleteErr = errors.New("provider down")
	require.NoError(t, svc.DeleteAllForParent(context.Background(), ref))

	files, err := svc.ListByParent(context.Background(), ref)
	require.NoError(t, err)
	require.Empty(t, files)
	require.False(t, hasAttachment(t, db, ref))
}

func TestListByParentScopedToKind(t *testing.T) {
	svc, _, db := newTestService(t)
	notifRef := seedParent(t, db, entity.KindNotification)
	regRef := entity.ItemRef{Kind: entity.KindRegulation, ID: notifRef.ID}
	require.NoError(t, db.Table(regRef.Kind.Table()).Create(&entity.Item{
		Title: "t", Brief: "b", Content: "c", Date: "2024-03-01",
	}).Error)

	_, err := svc.Upload(context.Background(), notifRef, fileHeaders(t, "a.pdf"))
	require.NoError(t, err)

	files, err := svc.ListByParent(context.Background(), regRef)
	require.NoError(t, err)
	require.Empty(t, files)
}
