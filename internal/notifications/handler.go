package notifications

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/middleware"
	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/response"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store reads and updates a user's notifications.
type Store interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a notification handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.PATCH("/notifications/:id/read", h.MarkRead)
}

// List handles GET /notifications?page=&limit=.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	list, total, err := h.store.ListByUser(c.Request.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("list notifications failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "Failed to load notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	response.Page(c, list, response.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	})
}

// MarkRead handles PATCH /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Notification not found")
		return
	}
	updated, err := h.store.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("mark notification read failed", zap.String("notification_id", id.String()), zap.Error(err))
		response.Internal(c, "Failed to update notification")
		return
	}
	if !updated {
		response.NotFound(c, "Notification not found")
		return
	}
	response.OKMessage(c, "Notification marked as read", nil)
}
