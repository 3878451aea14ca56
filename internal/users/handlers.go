package users

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credlens/credlens/internal/pagination"
)

// Handler provides HTTP endpoints for user operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new user handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up user routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.PATCH("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
}

// CreateUser handles POST /v1/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name, accountNumber and ifscCode are required",
		})
		return
	}

	u, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrInvalidUserFields):
			status = http.StatusBadRequest
			code = "invalid_request"
		case errors.Is(err, ErrDuplicateAccount):
			status = http.StatusConflict
			code = "already_exists"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// GetUser handles GET /v1/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No user with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ListUsers handles GET /v1/users
func (h *Handler) ListUsers(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
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

	// Fetch one extra row to detect whether another page exists.
	page, err := h.service.List(c.Request.Context(), limit+1, afterCreatedAt, afterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	items, next, hasMore := pagination.ComputePage(page, limit, func(u *User) (time.Time, string) {
		return u.CreatedAt, u.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"users":       items,
		"count":       len(items),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

// UpdateUser handles PATCH /v1/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must be JSON",
		})
		return
	}

	u, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrUserNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, ErrInvalidUserFields):
			status = http.StatusBadRequest
			code = "invalid_request"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u})
}

// DeleteUser handles DELETE /v1/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No user with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}
