package v1

import (
	"barebones/internal/live"

	"github.com/gin-gonic/gin"
)

// LiveHandler websocket feed of public forum activity
type LiveHandler struct {
	hub *live.Hub
}

// NewLiveHandler 创建LiveHandler
func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{hub: hub}
}

// Serve GET /api/v1/live
func (h *LiveHandler) Serve(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
