package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen/bangtin/internal/entity"
	"github.com/tdnguyen/bangtin/internal/modules/file/dto"
	"github.com/tdnguyen/bangtin/internal/modules/file/service"
	"github.com/tdnguyen/bangtin/pkg/apperror"
	"github.com/tdnguyen/bangtin/pkg/response"
	"github.com/tdnguyen/bangtin/pkg/validator"
)

type FileHandler struct {
	service  service.FileService
	maxFiles int
	maxBytes int64
}

func NewFileHandler(service service.FileService, maxFiles int, maxUploadMB int64) *FileHandler {
	return &FileHandler{
		service:  service,
		maxFiles: maxFiles,
		maxBytes: maxUploadMB << 20,
	}
}

func (h *FileHandler) Upload(c *gin.Context) {
	var form dto.UploadForm
	if err := c.ShouldBind(&form); err != nil {
		response.ValidationError(c, validator.FormatValidationErrors(err))
		return
	}

	kind, err := entity.ParseKind(form.RelatedType)
	if err != nil {
		response.Error(c, err)
		return
	}

	multipartForm, err := c.MultipartForm()
	if err != nil {
		response.Error(c, apperror.New(http.StatusBadRequest, "invalid multipart form", apperror.ErrBadRequest))
		return
	}

	files := multipartForm.File["files"]
	if len(files) == 0 {
		response.Error(c, apperror.New(http.StatusBadRequest, "no files were uploaded", apperror.ErrBadRequest))
		return
	}
	if len(files) > h.maxFiles {
		response.Error(c, apperror.New(http.StatusBadRequest,
			fmt.Sprintf("at most %d files per upload", h.maxFiles), apperror.ErrBadRequest))
		return
	}
	for _, f := range files {
		if f.Size > h.maxBytes {
			response.Error(c, apperror.New(http.StatusBadRequest,
				fmt.Sprintf("file %s exceeds the %dMB limit", f.Filename, h.maxBytes>>20), apperror.ErrBadRequest))
			return
		}
	}

	ref := entity.ItemRef{Kind: kind, ID: form.RelatedID}
	uploaded, err := h.service.Upload(c.Request.Context(), ref, files)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "files uploaded successfully",
		"files":   uploaded,
	})
}

func (h *FileHandler) ListByParent(c *gin.Context) {
	kind, err := entity.ParseKind(c.Param("relatedType"))
	if err != nil {
		response.Error(c, err)
		return
	}

	relatedID, err := strconv.ParseUint(c.Param("relatedId"), 10, 64)
	if err != nil {
		response.Error(c, apperror.New(http.StatusBadRequest, "invalid related id", apperror.ErrBadRequest))
		return
	}

	files, err := h.service.ListByParent(c.Request.Context(), entity.ItemRef{Kind: kind, ID: uint(relatedID)})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "files": files})
}

func (h *FileHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, apperror.New(http.StatusBadRequest, "invalid file id", apperror.ErrBadRequest))
		return
	}

	if err := h.service.Delete(c.Request.Context(), uint(id)); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "file deleted successfully"})
}
