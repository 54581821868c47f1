// Package response provides list envelopes and pagination for API handlers.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response wraps a list payload with its paging metadata.
type Response struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta describes where a page sits in the full collection.
type Meta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewMeta builds Meta for a page of count items starting at offset.
func NewMeta(total, limit, offset, count int) *Meta {
	return &Meta{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+count < total,
	}
}

// OKWithMeta returns a successful response with metadata.
func OKWithMeta(c *fiber.Ctx, data any, meta *Meta) error {
	return c.JSON(Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// PaginationParams extracts pagination parameters from request.
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
	Limit    int
}

// GetPagination reads page/page_size or limit/offset from the query.
// Limit is capped at maxPageSize; unparsable values fall back to the defaults.
func GetPagination(c *fiber.Ctx, defaultPageSize, maxPageSize int) *PaginationParams {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	// Also support limit/offset style
	limit := c.QueryInt("limit", pageSize)
	if limit < 1 {
		limit = pageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset := c.QueryInt("offset", (page-1)*pageSize)

	return &PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   offset,
		Limit:    limit,
	}
}
