package webhooks

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credlens/credlens/internal/idgen"
	"github.com/credlens/credlens/internal/security"
)

// validEvents lists the event types a subscriber may register for.
var validEvents = map[EventType]bool{
	EventAnalysisCompleted:    true,
	EventAnalysisFailed:       true,
	EventTransactionsIngested: true,
	EventUserCreated:          true,
	EventUserDeleted:          true,
}

// Handler provides HTTP endpoints for webhook management
type Handler struct {
	store       Store
	validateURL func(string) error // replaced in tests to allow loopback
}

// NewHandler creates a new webhook handler
func NewHandler(store Store) *Handler {
	return &Handler{
		store:       store,
		validateURL: security.ValidateEndpointURL,
	}
}

// RegisterRoutes sets up webhook routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users/:id/webhooks", h.CreateWebhook)
	r.GET("/users/:id/webhooks", h.ListWebhooks)
	r.DELETE("/users/:id/webhooks/:webhookId", h.DeleteWebhook)
}

// CreateWebhookRequest for creating a webhook subscription
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required"`
	Events []string `json:"events" binding:"required"`
}

// CreateWebhook handles POST /users/:id/webhooks
func (h *Handler) CreateWebhook(c *gin.Context) {
	userID := c.Param("id")

	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.validateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_url",
			"message": err.Error(),
		})
		return
	}

	events := make([]EventType, len(req.Events))
	for i, e := range req.Events {
		et := EventType(e)
		if !validEvents[et] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_event",
				"message": "Unknown event type: " + e,
			})
			return
		}
		events[i] = et
	}

	secret := idgen.Hex(32)

	sub := &Subscription{
		ID:        idgen.WithPrefix(idgen.PrefixWebhook),
		UserID:    userID,
		URL:       req.URL,
		Secret:    secret,
		Events:    events,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to create webhook",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"webhook": gin.H{
			"id":        sub.ID,
			"url":       sub.URL,
			"events":    sub.Events,
			"active":    sub.Active,
			"createdAt": sub.CreatedAt,
		},
		"secret": secret, // Only shown once!
		"usage": gin.H{
			"signature": "Verify with HMAC-SHA256(payload, secret)",
			"header":    "X-Credlens-Signature",
		},
	})
}

// ListWebhooks handles GET /users/:id/webhooks
func (h *Handler) ListWebhooks(c *gin.Context) {
	userID := c.Param("id")

	subs, err := h.store.GetByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list webhooks",
		})
		return
	}

	// Don't expose secrets
	webhooks := make([]gin.H, len(subs))
	for i, sub := range subs {
		webhooks[i] = gin.H{
			"id":          sub.ID,
			"url":         sub.URL,
			"events":      sub.Events,
			"active":      sub.Active,
			"createdAt":   sub.CreatedAt,
			"lastSuccess": sub.LastSuccess,
			"lastError":   sub.LastError,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"webhooks": webhooks,
	})
}

// DeleteWebhook handles DELETE /users/:id/webhooks/:webhookId
func (h *Handler) DeleteWebhook(c *gin.Context) {
	userID := c.Param("id")
	webhookID := c.Param("webhookId")

	sub, err := h.store.Get(c.Request.Context(), webhookID)
	if err != nil || sub.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "webhook_not_found",
			"message": "Webhook not found",
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), webhookID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "delete_failed",
			"message": "Failed to delete webhook",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "deleted",
		"message": "Webhook deleted",
	})
}
