package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamNotifications handles GET /api/v1/notifications/stream as a
// server-sent event stream of the caller's new notifications.
func (h *Handlers) StreamNotifications(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	ctx := c.Request.Context()
	ch, err := h.notifications.Subscribe(ctx, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	// The stream outlives the server write timeout
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	c.SSEvent("connected", gin.H{"user_id": userID})
	c.Writer.Flush()

	h.logger.Info("Notification stream opened", "user_id", userID)
	defer h.logger.Info("Notification stream closed", "user_id", userID)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case t := <-ticker.C:
			c.SSEvent("keepalive", gin.H{"time": t.UTC().Format(time.RFC3339)})
			return true
		}
	})
}
