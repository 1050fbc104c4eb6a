package mgt

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// ForumMgtHandler Forum Management API Handler
type ForumMgtHandler struct {
	svc *service.ForumService
}

// NewForumMgtHandler 创建 ForumMgtHandler
func NewForumMgtHandler(svc *service.ForumService) *ForumMgtHandler {
	return &ForumMgtHandler{svc: svc}
}

// Create POST /api/mgt/forum
func (h *ForumMgtHandler) Create(c *gin.Context) {
	var req model.ForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Update PUT /api/mgt/forum/:fid
func (h *ForumMgtHandler) Update(c *gin.Context) {
	fid, ok := paramID(c, "fid")
	if !ok {
		response.BadRequest(c, "invalid fid")
		return
	}
	var req model.ForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), fid, &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Delete DELETE /api/mgt/forum/:fid
func (h *ForumMgtHandler) Delete(c *gin.Context) {
	fid, ok := paramID(c, "fid")
	if !ok {
		response.BadRequest(c, "invalid fid")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), fid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}
