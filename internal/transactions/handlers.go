package transactions

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credlens/credlens/internal/pagination"
)

// Handler provides HTTP endpoints for transaction operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up transaction routes under /users/:id.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users/:id/transactions", h.IngestTransactions)
	r.GET("/users/:id/transactions", h.ListTransactions)
}

// RegisterAdminRoutes sets up destructive routes that the server guards
// with the admin secret.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.DELETE("/users/:id/transactions", h.PurgeTransactions)
}

// IngestTransactions handles POST /v1/users/:id/transactions
func (h *Handler) IngestTransactions(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "transactions array is required",
		})
		return
	}

	records, err := h.service.Ingest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrUserNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrInvalidRecord):
			status = http.StatusBadRequest
			code = "invalid_request"
		case errors.Is(err, ErrBatchTooLarge):
			status = http.StatusRequestEntityTooLarge
			code = "batch_too_large"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ingested": len(records),
		"message":  "transactions stored",
	})
}

// ListTransactions handles GET /v1/users/:id/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is malformed",
		})
		return
	}

	var afterCreatedAt time.Time
	afterID := ""
	if cursor != nil {
		afterCreatedAt = cursor.CreatedAt
		afterID = cursor.ID
	}

	page, err := h.service.List(c.Request.Context(), c.Param("id"), limit+1, afterCreatedAt, afterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	items, next, hasMore := pagination.ComputePage(page, limit, func(r *Record) (time.Time, string) {
		return r.CreatedAt, r.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"transactions": items,
		"count":        len(items),
		"next_cursor":  next,
		"has_more":     hasMore,
	})
}

// PurgeTransactions handles DELETE /v1/users/:id/transactions
func (h *Handler) PurgeTransactions(c *gin.Context) {
	n, err := h.service.Purge(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": n,
		"message": "transaction history removed",
	})
}
