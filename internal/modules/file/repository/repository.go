package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tdnguyen/bangtin/internal/entity"
)

// FileRepository owns the files table and the parents' denormalized
// has_attachment flag. Row changes and flag maintenance always run in
// one transaction so a crash cannot leave them out of sync.
type FileRepository interface {
	Create(ctx context.Context, file *entity.File) error
	FindByID(ctx context.Context, id uint) (*entity.File, error)
	FindByRelated(ctx context.Context, ref entity.ItemRef) ([]entity.File, error)
	Delete(ctx context.Context, file *entity.File) error
	DeleteAllForParent(ctx context.Context, ref entity.ItemRef) error
	ParentExists(ctx context.Context, ref entity.ItemRef) (bool, error)
}

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *entity.File) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		return setAttachmentFlag(tx, entity.ItemRef{Kind: file.RelatedType, ID: file.RelatedID}, true)
	})
}

func (r *fileRepository) FindByID(ctx context.Context, id uint) (*entity.File, error) {
	var file entity.File
	err := r.db.WithContext(ctx).First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByRelated(ctx context.Context, ref entity.ItemRef) ([]entity.File, error) {
	var files []entity.File
	err := r.db.WithContext(ctx).
		Where("related_type = ? AND related_id = ?", string(ref.Kind), ref.ID).
		Order("id").
		Find(&files).Error
	return files, err
}

// Delete removes one file row and resets the parent flag when it was the
// last attachment for that parent.
func (r *fileRepository) Delete(ctx context.Context, file *entity.File) error {
	ref := entity.ItemRef{Kind: file.RelatedType, ID: file.RelatedID}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.File{}, file.ID).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&entity.File{}).
			Where("related_type = ? AND related_id = ?", string(ref.Kind), ref.ID).
			Count(&remaining).Error; err != nil {
			return err
		}

		if remaining == 0 {
			return setAttachmentFlag(tx, ref, false)
		}
		return nil
	})
}

func (r *fileRepository) DeleteAllForParent(ctx context.Context, ref entity.ItemRef) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("related_type = ? AND related_id = ?", string(ref.Kind), ref.ID).
			Delete(&entity.File{}).Error; err != nil {
			return err
		}
		return setAttachmentFlag(tx, ref, false)
	})
}

func (r *fileRepository) ParentExists(ctx context.Context, ref entity.ItemRef) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(ref.Kind.Table()).
		Where("id = ?", ref.ID).
		Count(&count).Error
	return count > 0, err
}

func setAttachmentFlag(tx *gorm.DB, ref entity.ItemRef, has bool) error {
	return tx.Table(ref.Kind.Table()).
		Where("id = ?", ref.ID).
		UpdateColumn("has_attachment", has).Error
}
