package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for analysis operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new analysis handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up analysis routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users/:id/analyze", h.Analyze)
	r.GET("/users/:id/assessments", h.ListAssessments)
	r.GET("/users/:id/assessments/latest", h.LatestAssessment)
	r.GET("/assessments/:assessmentId", h.GetAssessment)
}

// Analyze handles POST /v1/users/:id/analyze
func (h *Handler) Analyze(c *gin.Context) {
	a, err := h.service.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrUserNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"assessment": a})
}

// LatestAssessment handles GET /v1/users/:id/assessments/latest
func (h *Handler) LatestAssessment(c *gin.Context) {
	a, err := h.service.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No assessment yet for this user; run an analysis first",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": a})
}

// ListAssessments handles GET /v1/users/:id/assessments
func (h *Handler) ListAssessments(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	list, err := h.service.ListByUser(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": list,
		"count":       len(list),
	})
}

// GetAssessment handles GET /v1/assessments/:assessmentId
func (h *Handler) GetAssessment(c *gin.Context) {
	a, err := h.service.Get(c.Request.Context(), c.Param("assessmentId"))
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No assessment with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": a})
}
