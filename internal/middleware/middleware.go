package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/metrics"
	"barebones/internal/pkg/response"
	"barebones/internal/service"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// LoggerMiddleware 请求日志中间件, also feeds the request histogram
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(latency.Seconds())

		logger.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.String("query", query),
			logger.Int("status", status),
			logger.Duration("latency", latency),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware 异常恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					logger.String("error", fmt.Sprintf("%v", err)),
					logger.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(500, gin.H{
					"code": 500,
					"msg":  "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// UserLoader resolves a verified token's user id to an account
type UserLoader interface {
	Authenticate(ctx context.Context, uid int64) (*model.User, error)
}

// AuthMW reads an optional bearer token. A valid token puts the account on
// the context; a missing one leaves the caller a guest. A malformed or
// expired token is rejected.
func AuthMW(cfg config.JWTConfig, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "invalid token format: missing 'Bearer ' prefix")
			c.Abort()
			return
		}

		uid, err := service.ParseJWT(strings.TrimPrefix(header, "Bearer "), cfg)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		user, err := users.Authenticate(c.Request.Context(), uid)
		if err != nil {
			response.Fail(c, err)
			c.Abort()
			return
		}
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// RequireUser rejects guests. It must run after AuthMW.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			response.Fail(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser 当前登录用户, nil for guests
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// SetUser puts an account on the context
func SetUser(c *gin.Context, u *model.User) {
	c.Set(userKey, u)
}
