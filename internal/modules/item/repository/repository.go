package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tdnguyen/bangtin/internal/entity"
)

// Definition binds the generic repository to one item table. Table and
// column identifiers are fixed here and never derived from request input.
type Definition struct {
	Kind           entity.Kind
	OrderBy        string
	DefaultUseHTML bool
	AllowImportant bool
	// Columns is the insert/update allowlist in database naming.
	Columns []string
}

var (
	Notifications = Definition{
		Kind:           entity.KindNotification,
		OrderBy:        "t.is_new DESC, t.date DESC, t.id DESC",
		DefaultUseHTML: false,
		Columns:        []string{"title", "brief", "content", "date", "update_date", "is_new", "use_html"},
	}

	Regulations = Definition{
		Kind:           entity.KindRegulation,
		OrderBy:        "t.is_important DESC, t.is_new DESC, t.date DESC, t.id DESC",
		DefaultUseHTML: true,
		AllowImportant: true,
		Columns:        []string{"title", "brief", "content", "date", "update_date", "is_new", "is_important", "use_html"},
	}
)

// searchColumns maps the searchable field names clients may request to
// their qualified column identifiers.
var searchColumns = map[string]string{
	"title": "t.title",
	"brief": "t.brief",
}

type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterRead   ReadFilter = "read"
	FilterUnread ReadFilter = "unread"
)

// ListOptions drives FindAll. Dates are normalized YYYY-MM-DD strings;
// empty means unbounded. Viewer nil means the read-state join is omitted.
type ListOptions struct {
	Page            int
	Limit           int
	Filter          ReadFilter
	Search          string
	SearchFields    []string
	SearchInContent bool
	FromDate        string
	ToDate          string
	OnlyImportant   bool
	Viewer          *uuid.UUID
}

// ItemRow is an item plus the viewer's computed read flag. Read is nil
// when the query ran without a viewer.
type ItemRow struct {
	entity.Item `gorm:"embedded"`
	Read        *bool `gorm:"column:read" json:"read,omitempty"`
}

type Repository interface {
	Definition() Definition
	FindByID(ctx context.Context, id uint, viewer *uuid.UUID) (*ItemRow, error)
	FindAll(ctx context.Context, opts ListOptions) ([]ItemRow, int64, error)
	Create(ctx context.Context, item *entity.Item) error
	Update(ctx context.Context, id uint, values map[string]any) error
	Delete(ctx context.Context, id uint) error
	SetReadStatus(ctx context.Context, id uint, userID uuid.UUID, read bool) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db  *gorm.DB
	def Definition
}

func NewRepository(db *gorm.DB, def Definition) Repository {
	return &repository{db: db, def: def}
}

func (r *repository) Definition() Definition {
	return r.def
}

func (r *repository) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.def.Kind.Table() + " AS t")
}

func (r *repository) withViewer(q *gorm.DB, viewer *uuid.UUID) *gorm.DB {
	if viewer == nil {
		return q
	}
	return q.Joins(
		"LEFT JOIN user_read_status urs ON urs.item_id = t.id AND urs.item_type = ? AND urs.user_id = ?",
		string(r.def.Kind), *viewer,
	)
}

func (r *repository) FindByID(ctx context.Context, id uint, viewer *uuid.UUID) (*ItemRow, error) {
	q := r.withViewer(r.table(ctx), viewer)
	if viewer != nil {
		q = q.Select("t.*, urs.id IS NOT NULL AS read")
	} else {
		q = q.Select("t.*")
	}

	var row ItemRow
	res := q.Where("t.id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// filtered builds the WHERE clause shared by the count and page queries.
// Keeping one builder is what guarantees total stays consistent with the
// returned page.
func (r *repository) filtered(ctx context.Context, opts ListOptions) *gorm.DB {
	q := r.withViewer(r.table(ctx), opts.Viewer)

	if opts.Viewer != nil {
		switch opts.Filter {
		case FilterRead:
			q = q.Where("urs.id IS NOT NULL")
		case FilterUnread:
			q = q.Where("urs.id IS NULL")
		}
	}

	if opts.Search != "" {
		fields := opts.SearchFields
		if len(fields) == 0 {
			fields = []string{"title", "brief"}
		}

		var conds []string
		var args []any
		pattern := "%" + strings.ToLower(opts.Search) + "%"
		for _, f := range fields {
			col, ok := searchColumns[f]
			if !ok {
				continue
			}
			conds = append(conds, "LOWER("+col+") LIKE ?")
			args = append(args, pattern)
		}
		if opts.SearchInContent {
			conds = append(conds, "LOWER(t.content) LIKE ?")
			args = append(args, pattern)
		}
		if len(conds) > 0 {
			q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
		}
	}

	if opts.FromDate != "" {
		q = q.Where("t.date >= ?", opts.FromDate)
	}
	if opts.ToDate != "" {
		q = q.Where("t.date <= ?", opts.ToDate)
	}

	if opts.OnlyImportant {
		q = q.Where("t.is_important = ?", true)
	}

	return q
}

func (r *repository) FindAll(ctx context.Context, opts ListOptions) ([]ItemRow, int64, error) {
	var total int64
	if err := r.filtered(ctx, opts).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.filtered(ctx, opts)
	if opts.Viewer != nil {
		q = q.Select("t.*, urs.id IS NOT NULL AS read")
	} else {
		q = q.Select("t.*")
	}

	offset := (opts.Page - 1) * opts.Limit

	var rows []ItemRow
	err := q.Order(r.def.OrderBy).
		Limit(opts.Limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *repository) Create(ctx context.Context, item *entity.Item) error {
	cols := make([]string, len(r.def.Columns))
	copy(cols, r.def.Columns)
	return r.db.WithContext(ctx).
		Table(r.def.Kind.Table()).
		Select(cols).
		Create(item).Error
}

func (r *repository) Update(ctx context.Context, id uint, values map[string]any) error {
	filtered := make(map[string]any, len(values))
	for _, col := range r.def.Columns {
		if v, ok := values[col]; ok {
			filtered[col] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Table(r.def.Kind.Table()).
		Where("id = ?", id).
		Updates(filtered).Error
}

// Delete removes the row together with every read-status row that
// references it. Orphaned read-status rows are a correctness bug.
func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("item_id = ? AND item_type = ?", id, string(r.def.Kind)).
			Delete(&entity.UserReadStatus{}).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM "+r.def.Kind.Table()+" WHERE id = ?", id).Error
	})
}

func (r *repository) SetReadStatus(ctx context.Context, id uint, userID uuid.UUID, read bool) error {
	if !read {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND item_id = ? AND item_type = ?", userID, id, string(r.def.Kind)).
			Delete(&entity.UserReadStatus{}).Error
	}

	status := entity.UserReadStatus{
		UserID:   userID,
		ItemID:   id,
		ItemType: r.def.Kind,
		ReadAt:   time.Now(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}, {Name: "item_type"}},
			DoUpdates: clause.Assignments(map[string]any{"read_at": status.ReadAt}),
		}).
		Create(&status).Error
}

// MarkAllAsRead inserts read-status rows for every currently-unread item.
// The insert ignores conflicts so a concurrent call racing the anti-join
// cannot fail on duplicate keys.
func (r *repository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	var ids []uint
	err := r.withViewer(r.table(ctx), &userID).
		Where("urs.id IS NULL").
		Pluck("t.id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	statuses := make([]entity.UserReadStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, entity.UserReadStatus{
			UserID:   userID,
			ItemID:   id,
			ItemType: r.def.Kind,
			ReadAt:   now,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}, {Name: "item_type"}},
			DoNothing: true,
		}).
		Create(&statuses).Error
}

func (r *repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.withViewer(r.table(ctx), &userID).
		Where("urs.id IS NULL").
		Count(&count).Error
	return count, err
}
