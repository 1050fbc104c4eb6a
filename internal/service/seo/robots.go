package seo

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// RobotsHandler 机器人处理器
type RobotsHandler struct {
	body []byte
}

// NewRobotsHandler builds robots.txt once; management and API paths stay out of crawlers.
func NewRobotsHandler(baseURL string) *RobotsHandler {
	return &RobotsHandler{body: []byte(fmt.Sprintf(
		"User-agent: *\nAllow: /\nDisallow: /api/mgt/\nDisallow: /api/v1/user/\n\nSitemap: %s/sitemap.xml\n", baseURL))}
}

// Get 获取robots.txt
func (h *RobotsHandler) Get(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400") // 24小时缓存
	c.Data(200, "text/plain; charset=utf-8", h.body)
}
