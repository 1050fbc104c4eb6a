package mgt

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// ReplyMgtHandler reply moderation
type ReplyMgtHandler struct {
	svc *service.ReplyService
	mod *service.ModerationService
}

// NewReplyMgtHandler 创建ReplyMgtHandler
func NewReplyMgtHandler(svc *service.ReplyService, mod *service.ModerationService) *ReplyMgtHandler {
	return &ReplyMgtHandler{svc: svc, mod: mod}
}

// Moderate POST /api/mgt/reply/:rid/moderate
func (h *ReplyMgtHandler) Moderate(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		response.BadRequest(c, "invalid rid")
		return
	}
	var req model.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	action, ok := service.ParseAction(req.Action)
	if !ok || action == service.ActionClose || action == service.ActionOpen {
		response.BadRequest(c, "unknown action")
		return
	}

	reply, err := h.mod.ReplyTransition(c.Request.Context(), middleware.CurrentUser(c), rid, action)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if reply == nil {
		response.SuccessWithMsg(c, nil, "reply deleted")
		return
	}
	response.Success(c, reply.ToDTO())
}

// Move POST /api/mgt/reply/:rid/move
func (h *ReplyMgtHandler) Move(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		response.BadRequest(c, "invalid rid")
		return
	}
	var req model.MoveReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Move(c.Request.Context(), middleware.CurrentUser(c), rid, req.TopicID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
