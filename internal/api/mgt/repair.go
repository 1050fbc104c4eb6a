package mgt

import (
	"barebones/internal/core/logger"
	"barebones/internal/middleware"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/response"
	"barebones/internal/repository"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// RepairHandler rebuilds denormalized counters
type RepairHandler struct {
	store  *repository.Store
	walker *service.Walker
	caps   *service.Capabilities
	forums *service.ForumService
}

// NewRepairHandler 创建RepairHandler
func NewRepairHandler(store *repository.Store, walker *service.Walker, caps *service.Capabilities, forums *service.ForumService) *RepairHandler {
	return &RepairHandler{store: store, walker: walker, caps: caps, forums: forums}
}

// Recount POST /api/mgt/repair/recount
func (h *RepairHandler) Recount(c *gin.Context) {
	if !h.caps.IsKeymaster(middleware.CurrentUser(c)) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}

	topics, forums, err := h.walker.Repair(c.Request.Context(), h.store)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.forums.FlushCache(); err != nil {
		logger.Warn("repair: cache flush failed", logger.ErrorField(err))
	}
	response.Success(c, gin.H{"topics": topics, "forums": forums})
}
