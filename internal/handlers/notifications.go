package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
	"github.com/emilythestrangee/campus-events/backend/internal/notify"
)

type NotificationHandler struct {
	db        *gorm.DB
	hub       *notify.Hub
	keepAlive time.Duration
}

func NewNotificationHandler(db *gorm.DB, hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{db: db, hub: hub, keepAlive: 25 * time.Second}
}

// ListNotifications returns the caller's notifications, newest first.
// ?unread=true limits the list to unread ones.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	q := h.db.WithContext(c.Request.Context()).
		Preload("Actor").
		Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		q = q.Where("read_at IS NULL")
	}

	var list []models.Notification
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch notifications", err))
		return
	}
	respondOK(c, http.StatusOK, list)
}

// MarkRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := paramID(c, "id", "notification")
	if err != nil {
		respondError(c, err)
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", time.Now().UTC()))
	if result.Error != nil {
		respondError(c, apperrors.Internal("Failed to update notification", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.NotFound("Notification not found"))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": id, "read": true})
}

// MarkAllRead marks every unread notification of the caller as read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		respondError(c, apperrors.Internal("Failed to update notifications", result.Error))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"updated": result.RowsAffected})
}

// Stream pushes the caller's new notifications as server-sent events until
// the client goes away.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	// the server's write timeout would otherwise cut the stream
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("cannot clear write deadline for notification stream")
	}

	sub, unsubscribe := h.hub.Subscribe(userID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"user_id": userID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
