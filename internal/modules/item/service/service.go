package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"github.com/tdnguyen/bangtin/internal/entity"
	"github.com/tdnguyen/bangtin/internal/modules/item/dto"
	"github.com/tdnguyen/bangtin/internal/modules/item/repository"
	"github.com/tdnguyen/bangtin/pkg/apperror"
)

const unreadCountTTL = 30 * time.Second

// AttachmentCleaner is the slice of the file module the item service
// needs when a parent item is deleted.
type AttachmentCleaner interface {
	DeleteAllForParent(ctx context.Context, ref entity.ItemRef) error
}

type ItemService interface {
	Kind() entity.Kind
	List(ctx context.Context, q dto.ListQuery, viewer *uuid.UUID) (*dto.ItemListResponse, error)
	Get(ctx context.Context, id uint, viewer *uuid.UUID) (*dto.ItemResponse, error)
	Create(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error)
	Update(ctx context.Context, id uint, req dto.UpdateItemRequest) (*dto.ItemResponse, error)
	Delete(ctx context.Context, id uint) error
	SetReadStatus(ctx context.Context, id uint, userID uuid.UUID, read bool) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	FindImportant(ctx context.Context, limit int, viewer *uuid.UUID) (*dto.ItemListResponse, error)
}

type itemService struct {
	repo        repository.Repository
	attachments AttachmentCleaner
	redisClient *redis.Client
	sanitizer   *bluemonday.Policy
}

func NewItemService(repo repository.Repository, attachments AttachmentCleaner, redisClient *redis.Client) ItemService {
	return &itemService{
		repo:        repo,
		attachments: attachments,
		redisClient: redisClient,
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

func (s *itemService) Kind() entity.Kind {
	return s.repo.Definition().Kind
}

func (s *itemService) notFound() error {
	return apperror.NotFound(string(s.Kind()) + " not found")
}

func (s *itemService) List(ctx context.Context, q dto.ListQuery, viewer *uuid.UUID) (*dto.ItemListResponse, error) {
	opts, err := s.listOptions(q, viewer)
	if err != nil {
		return nil, err
	}

	rows, total, err := s.repo.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	return buildListResponse(rows, total, opts.Page, opts.Limit), nil
}

func (s *itemService) listOptions(q dto.ListQuery, viewer *uuid.UUID) (repository.ListOptions, error) {
	opts := repository.ListOptions{
		Page:            q.Page,
		Limit:           q.Limit,
		Filter:          repository.ReadFilter(q.Filter),
		Search:          q.Search,
		SearchInContent: q.SearchInContent,
		Viewer:          viewer,
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Filter == "" {
		opts.Filter = repository.FilterAll
	}

	var err error
	if q.FromDate != "" {
		if opts.FromDate, err = normalizeDate(q.FromDate); err != nil {
			return opts, err
		}
	}
	if q.ToDate != "" {
		if opts.ToDate, err = normalizeDate(q.ToDate); err != nil {
			return opts, err
		}
	}

	return opts, nil
}

func (s *itemService) Get(ctx context.Context, id uint, viewer *uuid.UUID) (*dto.ItemResponse, error) {
	row, err := s.repo.FindByID(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, s.notFound()
	}
	resp := toResponse(row)
	return &resp, nil
}

func (s *itemService) Create(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error) {
	def := s.repo.Definition()

	date, err := normalizeDate(req.Date)
	if err != nil {
		return nil, err
	}

	item := entity.Item{
		Title:   req.Title,
		Brief:   req.Brief,
		Content: req.Content,
		Date:    date,
		IsNew:   true,
		UseHTML: def.DefaultUseHTML,
	}
	if req.IsNew != nil {
		item.IsNew = *req.IsNew
	}
	if req.UseHTML != nil {
		item.UseHTML = *req.UseHTML
	}
	if def.AllowImportant && req.IsImportant != nil {
		item.IsImportant = *req.IsImportant
	}
	if item.UseHTML {
		item.Content = s.sanitizer.Sanitize(item.Content)
	}
	// UpdateDate stays null until the first update.

	if err := s.repo.Create(ctx, &item); err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, item.ID, nil)
	if err != nil {
		return nil, err
	}
	resp := toResponse(row)

	s.publishCreated(ctx, &resp)

	return &resp, nil
}

func (s *itemService) Update(ctx context.Context, id uint, req dto.UpdateItemRequest) (*dto.ItemResponse, error) {
	def := s.repo.Definition()

	existing, err := s.repo.FindByID(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, s.notFound()
	}

	values := map[string]any{}
	if req.Title != nil {
		values["title"] = *req.Title
	}
	if req.Brief != nil {
		values["brief"] = *req.Brief
	}
	if req.Date != nil {
		date, err := normalizeDate(*req.Date)
		if err != nil {
			return nil, err
		}
		values["date"] = date
	}
	if req.IsNew != nil {
		values["is_new"] = *req.IsNew
	}
	if def.AllowImportant && req.IsImportant != nil {
		values["is_important"] = *req.IsImportant
	}

	useHTML := existing.UseHTML
	if req.UseHTML != nil {
		useHTML = *req.UseHTML
		values["use_html"] = useHTML
	}
	if req.Content != nil {
		content := *req.Content
		if useHTML {
			content = s.sanitizer.Sanitize(content)
		}
		values["content"] = content
	}

	// Server-side stamp, regardless of anything the client sent.
	values["update_date"] = time.Now().Format(storedDateLayout)

	if err := s.repo.Update(ctx, id, values); err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	resp := toResponse(row)
	return &resp, nil
}

// Delete removes the item, its read-status rows and every attached file.
// External deletions are best-effort and never block the removal.
func (s *itemService) Delete(ctx context.Context, id uint) error {
	existing, err := s.repo.FindByID(ctx, id, nil)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.notFound()
	}

	if s.attachments != nil {
		ref := entity.ItemRef{Kind: s.Kind(), ID: id}
		if err := s.attachments.DeleteAllForParent(ctx, ref); err != nil {
			return err
		}
	}

	return s.repo.Delete(ctx, id)
}

func (s *itemService) SetReadStatus(ctx context.Context, id uint, userID uuid.UUID, read bool) error {
	existing, err := s.repo.FindByID(ctx, id, nil)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.notFound()
	}

	if err := s.repo.SetReadStatus(ctx, id, userID, read); err != nil {
		return err
	}

	s.invalidateUnreadCount(ctx, userID)
	return nil
}

func (s *itemService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}
	s.invalidateUnreadCount(ctx, userID)
	return nil
}

// UnreadCount serves from a short-lived Redis cache when available. The
// cache only smooths badge polling; counts may lag up to the TTL after
// another user's admin creates or deletes items.
func (s *itemService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := s.unreadCountKey(userID)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, key).Result(); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redisClient != nil {
		s.redisClient.Set(ctx, key, count, unreadCountTTL)
	}

	return count, nil
}

func (s *itemService) FindImportant(ctx context.Context, limit int, viewer *uuid.UUID) (*dto.ItemListResponse, error) {
	if limit < 1 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	rows, total, err := s.repo.FindAll(ctx, repository.ListOptions{
		Page:          1,
		Limit:         limit,
		Filter:        repository.FilterAll,
		OnlyImportant: true,
		Viewer:        viewer,
	})
	if err != nil {
		return nil, err
	}

	return buildListResponse(rows, total, 1, limit), nil
}

func (s *itemService) unreadCountKey(userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s", s.Kind(), userID)
}

func (s *itemService) invalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, s.unreadCountKey(userID)).Err(); err != nil {
		log.Printf("failed to invalidate unread count cache: %v", err)
	}
}

// EventChannel is the Redis pub/sub channel carrying newly created items
// of one kind. The WebSocket handler subscribes to it.
func EventChannel(kind entity.Kind) string {
	return "bangtin:items:" + string(kind)
}

func (s *itemService) publishCreated(ctx context.Context, item *dto.ItemResponse) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return
	}
	s.redisClient.Publish(ctx, EventChannel(s.Kind()), payload)
}

func toResponse(row *repository.ItemRow) dto.ItemResponse {
	return dto.ItemResponse{
		ID:            row.ID,
		Title:         row.Title,
		Brief:         row.Brief,
		Content:       row.Content,
		Date:          displayDate(row.Date),
		UpdateDate:    displayDatePtr(row.UpdateDate),
		IsNew:         row.IsNew,
		IsImportant:   row.IsImportant,
		UseHTML:       row.UseHTML,
		HasAttachment: row.HasAttachment,
		Read:          row.Read,
	}
}

func buildListResponse(rows []repository.ItemRow, total int64, page, limit int) *dto.ItemListResponse {
	items := make([]dto.ItemResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &dto.ItemListResponse{
		Items: items,
		Pagination: dto.Pagination{
			Total:       total,
			TotalPages:  totalPages,
			CurrentPage: page,
			Limit:       limit,
		},
	}
}
