package v1

import (
	"context"

	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/pkg/util"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// TagHandler Tag API Handler
type TagHandler struct {
	svc *service.TagService
}

// NewTagHandler 创建TagHandler
func NewTagHandler(svc *service.TagService) *TagHandler {
	return &TagHandler{svc: svc}
}

// List GET /api/v1/tags
func (h *TagHandler) List(c *gin.Context) {
	offset, limit := page(c)
	tags, err := h.svc.List(c.Request.Context(), offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tags)
}

// ByTopic GET /api/v1/topic/:tid/tags
func (h *TagHandler) ByTopic(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}

	tags, err := h.svc.ListByTopic(c.Request.Context(), tid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tags)
}

// Add POST /api/v1/topic/:tid/tags
func (h *TagHandler) Add(c *gin.Context) {
	h.change(c, h.svc.Add)
}

// Remove DELETE /api/v1/topic/:tid/tags
func (h *TagHandler) Remove(c *gin.Context) {
	h.change(c, h.svc.Remove)
}

type tagChange func(ctx context.Context, user *model.User, topicID int64, names []string) ([]*model.Tag, error)

func (h *TagHandler) change(c *gin.Context, fn tagChange) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tags, err := fn(c.Request.Context(), middleware.CurrentUser(c), tid, util.SplitTags(req.Tags))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tags)
}
