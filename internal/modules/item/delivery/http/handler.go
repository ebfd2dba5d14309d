package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/tdnguyen/bangtin/internal/modules/item/dto"
	"github.com/tdnguyen/bangtin/internal/modules/item/service"
	"github.com/tdnguyen/bangtin/pkg/apperror"
	"github.com/tdnguyen/bangtin/pkg/response"
	"github.com/tdnguyen/bangtin/pkg/validator"
)

// ItemHandler serves one item kind; the server wires two instances, one
// for notifications and one for regulations.
type ItemHandler struct {
	service     service.ItemService
	redisClient *redis.Client
	upgrader    websocket.Upgrader
}

func NewItemHandler(service service.ItemService, redisClient *redis.Client) *ItemHandler {
	return &ItemHandler{
		service:     service,
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *ItemHandler) label() string {
	return string(h.service.Kind())
}

func (h *ItemHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, validator.FormatValidationErrors(err))
		return
	}

	viewer := response.OptionalUserID(c)
	resp, err := h.service.List(c.Request.Context(), q, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ItemHandler) GetByID(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	viewer := response.OptionalUserID(c)
	item, err := h.service.Get(c.Request.Context(), id, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationErrors(err))
		return
	}

	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s created successfully", h.label()),
		"item":    item,
	})
}

func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var req dto.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationErrors(err))
		return
	}

	item, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s updated successfully", h.label()),
		"item":    item,
	})
}

func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s deleted successfully", h.label()),
	})
}

func (h *ItemHandler) UpdateReadStatus(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var req dto.ReadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationErrors(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.SetReadStatus(c.Request.Context(), id, userID, *req.Read); err != nil {
		response.Error(c, err)
		return
	}

	state := "unread"
	if *req.Read {
		state = "read"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s marked as %s", h.label(), state),
	})
}

func (h *ItemHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("all %ss marked as read", h.label()),
	})
}

func (h *ItemHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// FindImportant serves the important-regulations shortcut.
func (h *ItemHandler) FindImportant(c *gin.Context) {
	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, apperror.New(http.StatusBadRequest, "limit must be a positive integer", apperror.ErrBadRequest))
			return
		}
		limit = parsed
	}

	viewer := response.OptionalUserID(c)
	resp, err := h.service.FindImportant(c.Request.Context(), limit, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ItemHandler) idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, apperror.New(http.StatusBadRequest, "invalid id", apperror.ErrBadRequest))
		return 0, false
	}
	return uint(id), true
}
