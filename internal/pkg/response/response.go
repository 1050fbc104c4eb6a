package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"barebones/internal/core/logger"
	"barebones/internal/pkg/apperr"
)

// Response Standard API Response
type Response struct {
	Code   int                 `json:"code"`
	Data   interface{}         `json:"data,omitempty"`
	Msg    string              `json:"msg,omitempty"`
	Errors []apperr.FieldError `json:"errors,omitempty"`
}

// Success Success response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: apperr.CodeSuccess,
		Data: data,
		Msg:  "success",
	})
}

// SuccessWithMsg Success with message
func SuccessWithMsg(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: apperr.CodeSuccess,
		Data: data,
		Msg:  msg,
	})
}

// Fail maps the error taxonomy onto HTTP statuses
func Fail(c *gin.Context, err error) {
	var list *apperr.Errors
	if errors.As(err, &list) {
		c.JSON(http.StatusBadRequest, Response{
			Code:   apperr.CodeRejected,
			Msg:    list.Error(),
			Errors: list.List,
		})
		return
	}

	var ae *apperr.AppError
	if errors.As(err, &ae) {
		status := http.StatusInternalServerError
		switch ae.Kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindPermission:
			status = http.StatusForbidden
			if ae.Code == apperr.CodeUnauthorized {
				status = http.StatusUnauthorized
			}
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindConflict:
			status = http.StatusConflict
		case apperr.KindStorage:
			logger.Error("storage failure", logger.String("path", c.Request.URL.Path), logger.ErrorField(err))
			c.JSON(status, Response{Code: ae.Code, Msg: ae.Message})
			return
		}
		c.JSON(status, Response{Code: ae.Code, Msg: ae.Message})
		return
	}

	logger.Error("unhandled error", logger.String("path", c.Request.URL.Path), logger.ErrorField(err))
	c.JSON(http.StatusInternalServerError, Response{
		Code: apperr.CodeInternalError,
		Msg:  "internal server error",
	})
}

// BadRequest Bad request response
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Code: apperr.CodeBadRequest,
		Msg:  msg,
	})
}

// Unauthorized Unauthorized response
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code: apperr.CodeUnauthorized,
		Msg:  msg,
	})
}

// NotFound Not found response
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{
		Code: apperr.CodeNotFound,
		Msg:  msg,
	})
}
