package notification

import (
	"log/slog"
	"net/http"

	"hirenotify/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublishEvent handles POST /api/v1/events
// Validates a hiring event, enqueues it and returns 202 Accepted.
func (h *Handler) PublishEvent(c *gin.Context) {
	var event HiringEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.PublishEvent(c.Request.Context(), &event)
	if err != nil {
		h.logger.Error("publish hiring event failed",
			"error", err,
			"type", event.Type,
			"application_id", event.ApplicationID,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, resp)
}

// GetNotification handles GET /api/v1/notifications/:id
func (h *Handler) GetNotification(c *gin.Context) {
	n, err := h.service.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.service.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// Stats handles GET /api/v1/notifications/stats
func (h *Handler) Stats(c *gin.Context) {
	resp, err := h.service.Stats(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events", h.PublishEvent)
	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/notifications/stats", h.Stats)
	rg.GET("/notifications/:id", h.GetNotification)
}
