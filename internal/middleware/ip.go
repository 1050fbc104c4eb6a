package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"

	"github.com/gin-gonic/gin"
)

// ipChecker IP 检查器
type ipChecker struct {
	allowNets []*net.IPNet
	denyNets  []*net.IPNet
	allowSet  map[string]bool
	denySet   map[string]bool
}

// newIPChecker parses plain addresses and CIDR blocks
func newIPChecker(allow, deny []string) *ipChecker {
	c := &ipChecker{
		allowSet: make(map[string]bool),
		denySet:  make(map[string]bool),
	}
	add := func(list []string, nets *[]*net.IPNet, set map[string]bool) {
		for _, ip := range list {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				continue
			}
			if _, n, err := net.ParseCIDR(ip); err == nil {
				*nets = append(*nets, n)
			} else {
				set[ip] = true
			}
		}
	}
	add(allow, &c.allowNets, c.allowSet)
	add(deny, &c.denyNets, c.denySet)
	return c
}

// isLocalIP loopback and private ranges
func isLocalIP(ipStr string) bool {
	if ipStr == "localhost" {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

// isDenied 是否在黑名单中
func (c *ipChecker) isDenied(ipStr string) bool {
	if c.denySet[ipStr] {
		return true
	}
	if ip := net.ParseIP(ipStr); ip != nil {
		for _, n := range c.denyNets {
			if n.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// isAllowed deny beats allow; local addresses pass unless denied
func (c *ipChecker) isAllowed(ipStr string) bool {
	if c.isDenied(ipStr) {
		return false
	}
	if isLocalIP(ipStr) || c.allowSet[ipStr] {
		return true
	}
	if ip := net.ParseIP(ipStr); ip != nil {
		for _, n := range c.allowNets {
			if n.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// AdminWhitelistMW guards the management API: local and whitelisted
// addresses only.
func AdminWhitelistMW(cfg config.SecurityConfig) gin.HandlerFunc {
	checker := newIPChecker(cfg.AllowIPs, cfg.DenyIPs)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if checker.isAllowed(clientIP) {
			c.Next()
			return
		}

		logger.Warn("Admin access denied: IP not in whitelist",
			logger.String("ip", clientIP),
			logger.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": 403,
			"msg":  "access denied: IP not in whitelist",
		})
	}
}

// DenyListMW blocks denied addresses from the public API
func DenyListMW(cfg config.SecurityConfig) gin.HandlerFunc {
	checker := newIPChecker(nil, cfg.DenyIPs)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if checker.isDenied(clientIP) {
			logger.Warn("Public IP blocked by deny list",
				logger.String("ip", clientIP),
				logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": 403,
				"msg":  "access denied",
			})
			return
		}
		c.Next()
	}
}

// IPLimiter fixed-window request counter per IP
type IPLimiter struct {
	mu      sync.Mutex
	windows map[string]*ipWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

type ipWindow struct {
	start time.Time
	count int
}

// NewIPLimiter 创建IP限制器; limit <= 0 disables limiting
func NewIPLimiter(limit int, window time.Duration) *IPLimiter {
	return &IPLimiter{
		windows: make(map[string]*ipWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow 检查是否允许访问
func (l *IPLimiter) Allow(ip string) bool {
	if l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) >= l.window {
		if len(l.windows) > 10000 {
			l.sweep(now)
		}
		l.windows[ip] = &ipWindow{start: now, count: 1}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// sweep drops expired windows; caller holds mu
func (l *IPLimiter) sweep(now time.Time) {
	for ip, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, ip)
		}
	}
}

// RateLimitMW 频率限制中间件
func RateLimitMW(limiter *IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !limiter.Allow(ip) {
			logger.Warn("rate limit exceeded",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests",
			})
			return
		}

		c.Next()
	}
}
