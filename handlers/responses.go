package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

const (
	StatusSuccess = "success"

	DefaultMessage = "Operation completed successfully"
)

// Response is the envelope every successful call is answered with.
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// PaginationMeta describes where a page sits in the full result.
type PaginationMeta struct {
	Page       uint64 `json:"page"`
	Limit      uint64 `json:"limit"`
	Total      int64  `json:"total"`
	TotalPages uint64 `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
}

// NewPaginationMeta computes the derived fields for page of limit rows out of total.
func NewPaginationMeta(page Page, total int64) PaginationMeta {
	var totalPages uint64
	if page.Limit > 0 && total > 0 {
		totalPages = uint64(math.Ceil(float64(total) / float64(page.Limit)))
	}

	return PaginationMeta{
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page.Number < totalPages,
		HasPrev:    page.Number > 1,
	}
}

// Paginated is the data of a list response.
type Paginated[T any] struct {
	List       []T            `json:"list"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewPaginated wraps one page of items.
func NewPaginated[T any](items []T, page Page, total int64) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{List: items, Pagination: NewPaginationMeta(page, total)}
}

// Success writes data inside the success envelope.
func Success(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	if message == "" {
		message = DefaultMessage
	}

	httptor.WriteJSON(ctx, w, status, Response{
		Status:    StatusSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// OK is Success with 200.
func OK(ctx context.Context, w http.ResponseWriter, message string, data any) {
	Success(ctx, w, http.StatusOK, message, data)
}

// Created is Success with 201.
func Created(ctx context.Context, w http.ResponseWriter, message string, data any) {
	Success(ctx, w, http.StatusCreated, message, data)
}

// Fail writes err as the error body.
func Fail(ctx context.Context, w http.ResponseWriter, err error) {
	httptor.WriteError(ctx, w, err)
}
