package v1

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// TopicHandler Topic API Handler
type TopicHandler struct {
	svc     *service.TopicService
	replies *service.ReplyService
}

// NewTopicHandler 创建TopicHandler
func NewTopicHandler(svc *service.TopicService, replies *service.ReplyService) *TopicHandler {
	return &TopicHandler{svc: svc, replies: replies}
}

// Get GET /api/v1/topic/:tid
func (h *TopicHandler) Get(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}

	dto, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), tid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Replies GET /api/v1/topic/:tid/replies
func (h *TopicHandler) Replies(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	offset, limit := page(c)

	list, err := h.replies.ListByTopic(c.Request.Context(), middleware.CurrentUser(c), tid, offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, list)
}

// Revisions GET /api/v1/topic/:tid/revisions
func (h *TopicHandler) Revisions(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}

	revs, err := h.svc.Revisions(c.Request.Context(), middleware.CurrentUser(c), tid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, revs)
}

// Create POST /api/v1/topics
func (h *TopicHandler) Create(c *gin.Context) {
	var req model.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), c.ClientIP(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Edit PUT /api/v1/topic/:tid
func (h *TopicHandler) Edit(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Edit(c.Request.Context(), middleware.CurrentUser(c), c.ClientIP(), tid, &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
