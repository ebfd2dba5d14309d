package dto

// ListQuery carries the list options common to both item kinds.
type ListQuery struct {
	Page            int    `form:"page,default=1" binding:"omitempty,min=1"`
	Limit           int    `form:"limit,default=10" binding:"omitempty,min=1,max=100"`
	Filter          string `form:"filter" binding:"omitempty,oneof=all read unread"`
	Search          string `form:"search"`
	SearchInContent bool   `form:"searchInContent"`
	FromDate        string `form:"fromDate"`
	ToDate          string `form:"toDate"`
}

// CreateItemRequest binds only the writable fields; anything else in the
// body is dropped before it can reach the database.
type CreateItemRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Brief       string `json:"brief" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Date        string `json:"date" binding:"required"`
	IsNew       *bool  `json:"isNew"`
	IsImportant *bool  `json:"isImportant"`
	UseHTML     *bool  `json:"useHtml"`
}

// UpdateItemRequest applies only the fields present in the body.
// updateDate is never client-writable; the server stamps it.
type UpdateItemRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Brief       *string `json:"brief"`
	Content     *string `json:"content"`
	Date        *string `json:"date"`
	IsNew       *bool   `json:"isNew"`
	IsImportant *bool   `json:"isImportant"`
	UseHTML     *bool   `json:"useHtml"`
}

type ReadStatusRequest struct {
	Read *bool `json:"read" binding:"required"`
}

// ItemResponse renders dates as DD/MM/YYYY. Read is present only when
// the request carried an authenticated viewer.
type ItemResponse struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Brief         string  `json:"brief"`
	Content       string  `json:"content"`
	Date          string  `json:"date"`
	UpdateDate    *string `json:"updateDate"`
	IsNew         bool    `json:"isNew"`
	IsImportant   bool    `json:"isImportant"`
	UseHTML       bool    `json:"useHtml"`
	HasAttachment bool    `json:"hasAttachment"`
	Read          *bool   `json:"read,omitempty"`
}

type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
}

type ItemListResponse struct {
	Items      []ItemResponse `json:"items"`
	Pagination Pagination     `json:"pagination"`
}
