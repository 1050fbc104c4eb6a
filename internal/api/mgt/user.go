package mgt

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/pkg/util"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// UserMgtHandler 用户管理API
type UserMgtHandler struct {
	svc *service.UserService
}

// NewUserMgtHandler 创建用户管理处理器
func NewUserMgtHandler(svc *service.UserService) *UserMgtHandler {
	return &UserMgtHandler{svc: svc}
}

// List GET /api/mgt/users
func (h *UserMgtHandler) List(c *gin.Context) {
	offset, limit := util.Page(c.Query("page"), c.Query("size"), 50, 200)
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, list)
}

// SetRole PUT /api/mgt/user/:uid/role
func (h *UserMgtHandler) SetRole(c *gin.Context) {
	uid, ok := paramID(c, "uid")
	if !ok {
		response.BadRequest(c, "invalid uid")
		return
	}
	var req model.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.SetForumRole(c.Request.Context(), middleware.CurrentUser(c), uid, req.Role)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// SetStatus PUT /api/mgt/user/:uid/status
func (h *UserMgtHandler) SetStatus(c *gin.Context) {
	uid, ok := paramID(c, "uid")
	if !ok {
		response.BadRequest(c, "invalid uid")
		return
	}
	var req model.UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.SetStatus(c.Request.Context(), middleware.CurrentUser(c), uid, req.Status)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
