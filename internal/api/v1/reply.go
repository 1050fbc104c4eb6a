package v1

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// ReplyHandler Reply API Handler
type ReplyHandler struct {
	svc *service.ReplyService
}

// NewReplyHandler 创建ReplyHandler
func NewReplyHandler(svc *service.ReplyService) *ReplyHandler {
	return &ReplyHandler{svc: svc}
}

// Get GET /api/v1/reply/:rid
func (h *ReplyHandler) Get(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		response.BadRequest(c, "invalid rid")
		return
	}

	dto, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), rid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Revisions GET /api/v1/reply/:rid/revisions
func (h *ReplyHandler) Revisions(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		response.BadRequest(c, "invalid rid")
		return
	}

	revs, err := h.svc.Revisions(c.Request.Context(), middleware.CurrentUser(c), rid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, revs)
}

// Create POST /api/v1/replies
func (h *ReplyHandler) Create(c *gin.Context) {
	var req model.ReplyRequest
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

// Edit PUT /api/v1/reply/:rid
func (h *ReplyHandler) Edit(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		response.BadRequest(c, "invalid rid")
		return
	}
	var req model.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Edit(c.Request.Context(), middleware.CurrentUser(c), c.ClientIP(), rid, &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
