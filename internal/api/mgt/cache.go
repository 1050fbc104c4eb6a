package mgt

import (
	"barebones/internal/core/runtime"
	"barebones/internal/middleware"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// CacheHandler Cache Management API Handler
type CacheHandler struct {
	forums *service.ForumService
	rt     *runtime.Runtime
	caps   *service.Capabilities
}

// NewCacheHandler 创建CacheHandler
func NewCacheHandler(forums *service.ForumService, rt *runtime.Runtime, caps *service.Capabilities) *CacheHandler {
	return &CacheHandler{forums: forums, rt: rt, caps: caps}
}

// Flush POST /api/mgt/cache/flush
func (h *CacheHandler) Flush(c *gin.Context) {
	if !h.caps.IsKeymaster(middleware.CurrentUser(c)) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}
	if err := h.forums.FlushCache(); err != nil {
		response.Fail(c, apperr.WrapError(err, apperr.CodeCacheError))
		return
	}
	if err := h.rt.Reload(c.Request.Context()); err != nil {
		response.Fail(c, apperr.Storage(err))
		return
	}
	response.SuccessWithMsg(c, nil, "cache flushed")
}

// Runtime GET /api/mgt/runtime
func (h *CacheHandler) Runtime(c *gin.Context) {
	response.Success(c, h.rt.Status())
}
