package mgt

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// TopicMgtHandler topic moderation and restructuring
type TopicMgtHandler struct {
	svc *service.TopicService
	mod *service.ModerationService
}

// NewTopicMgtHandler 创建TopicMgtHandler
func NewTopicMgtHandler(svc *service.TopicService, mod *service.ModerationService) *TopicMgtHandler {
	return &TopicMgtHandler{svc: svc, mod: mod}
}

// Moderate POST /api/mgt/topic/:tid/moderate
func (h *TopicMgtHandler) Moderate(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	action, ok := service.ParseAction(req.Action)
	if !ok {
		response.BadRequest(c, "unknown action")
		return
	}

	topic, err := h.mod.TopicTransition(c.Request.Context(), middleware.CurrentUser(c), tid, action)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if topic == nil {
		response.SuccessWithMsg(c, nil, "topic deleted")
		return
	}
	response.Success(c, topic.ToDTO())
}

// Move POST /api/mgt/topic/:tid/move
func (h *TopicMgtHandler) Move(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.MoveTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Move(c.Request.Context(), middleware.CurrentUser(c), tid, req.ForumID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Split POST /api/mgt/topic/:tid/split
func (h *TopicMgtHandler) Split(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Split(c.Request.Context(), middleware.CurrentUser(c), tid, &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Merge POST /api/mgt/topic/:tid/merge
func (h *TopicMgtHandler) Merge(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		response.BadRequest(c, "invalid tid")
		return
	}
	var req model.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Merge(c.Request.Context(), middleware.CurrentUser(c), tid, &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
