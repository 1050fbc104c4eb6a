package v1

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户 API Handler
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler 创建用户Handler
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register POST /api/v1/user/register
func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Login POST /api/v1/user/login
func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, resp)
}

// Me GET /api/v1/user/me
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	dto, err := h.svc.Get(c.Request.Context(), user, user.ID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}

// Get GET /api/v1/user/:uid
func (h *UserHandler) Get(c *gin.Context) {
	uid, ok := paramID(c, "uid")
	if !ok {
		response.BadRequest(c, "invalid uid")
		return
	}

	dto, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), uid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, dto)
}
