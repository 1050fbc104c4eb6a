package v1

import (
	"barebones/internal/middleware"
	"barebones/internal/model"
	"barebones/internal/pkg/nonce"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

// NonceHandler issues form nonces
type NonceHandler struct {
	issuer *nonce.Issuer
}

// NewNonceHandler 创建NonceHandler
func NewNonceHandler(issuer *nonce.Issuer) *NonceHandler {
	return &NonceHandler{issuer: issuer}
}

// Issue GET /api/v1/nonce?action=topic-new
//
// The nonce is bound to the caller: the account when logged in, otherwise
// the client IP.
func (h *NonceHandler) Issue(c *gin.Context) {
	action := c.Query("action")
	switch action {
	case service.ActionTopicNew, service.ActionReplyNew, service.ActionTopicEdit, service.ActionReplyEdit:
	default:
		response.BadRequest(c, "unknown nonce action")
		return
	}

	author := model.Author{AuthorIP: c.ClientIP()}
	if user := middleware.CurrentUser(c); user != nil {
		author.AuthorID = user.ID
	}
	token, err := h.issuer.Issue(action, author.ActorKey())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"action": action, "nonce": token})
}
