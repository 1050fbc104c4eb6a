package v1

import (
	"barebones/internal/middleware"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// ForumHandler Forum API Handler
type ForumHandler struct {
	svc    *service.ForumService
	topics *service.TopicService
}

// NewForumHandler 创建 ForumHandler
func NewForumHandler(svc *service.ForumService, topics *service.TopicService) *ForumHandler {
	return &ForumHandler{svc: svc, topics: topics}
}

// List GET /api/v1/forums
func (h *ForumHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, list)
}

// Tree GET /api/v1/forums/tree
func (h *ForumHandler) Tree(c *gin.Context) {
	tree, err := h.svc.GetTree(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tree)
}

// Get GET /api/v1/forum/:fid
func (h *ForumHandler) Get(c *gin.Context) {
	fid, ok := paramID(c, "fid")
	if !ok {
		response.BadRequest(c, "invalid fid")
		return
	}

	dto, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), fid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Topics GET /api/v1/forum/:fid/topics
func (h *ForumHandler) Topics(c *gin.Context) {
	fid, ok := paramID(c, "fid")
	if !ok {
		response.BadRequest(c, "invalid fid")
		return
	}
	offset, limit := page(c)

	list, err := h.topics.ListByForum(c.Request.Context(), middleware.CurrentUser(c), fid, offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, list)
}
