package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/api/middleware"
	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/notify"
	"load-request-api-server/internal/repository"
)

type NotificationHandler struct {
	Notifications *notify.Emitter
}

// GetMyNotifications lists the caller's notifications, optionally filtered by
// status and related request.
func (h *NotificationHandler) GetMyNotifications(c *gin.Context) {
	filter := repository.NotificationFilter{
		UserID:    middleware.CurrentActor(c).UserID,
		RequestID: c.Query("requestID"),
		Status:    models.NotificationStatus(c.Query("status")),
	}
	notifications, err := h.Notifications.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, errs.Normalize(err))
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// owned loads a notification addressed to the caller. Anyone else's is
// reported as missing.
func (h *NotificationHandler) owned(c *gin.Context) (*models.Notification, bool) {
	n, err := h.Notifications.Get(c.Request.Context(), c.Param("id"))
	if err == nil && n.UserID != middleware.CurrentActor(c).UserID {
		err = errs.NotFound("notification", c.Param("id"))
	}
	if err != nil {
		respondError(c, errs.Normalize(err))
		return nil, false
	}
	return n, true
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	read, err := h.Notifications.MarkRead(c.Request.Context(), n.NotificationID)
	if err != nil {
		respondError(c, errs.Normalize(err))
		return
	}
	c.JSON(http.StatusOK, read)
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.Notifications.Delete(c.Request.Context(), n.NotificationID); err != nil {
		respondError(c, errs.Normalize(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
