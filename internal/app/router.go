package app

import (
	"time"

	"barebones/internal/api/mgt"
	v1 "barebones/internal/api/v1"
	"barebones/internal/middleware"
	"barebones/internal/service/seo"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router 注册路由
func (a *App) Router() *gin.Engine {
	cfg := a.Config

	forumV1Handler := v1.NewForumHandler(a.Forums, a.Topics)
	topicV1Handler := v1.NewTopicHandler(a.Topics, a.Replies)
	replyV1Handler := v1.NewReplyHandler(a.Replies)
	tagV1Handler := v1.NewTagHandler(a.Tags)
	userV1Handler := v1.NewUserHandler(a.Users)
	nonceHandler := v1.NewNonceHandler(a.Nonces)
	liveHandler := v1.NewLiveHandler(a.Hub)

	forumMgtHandler := mgt.NewForumMgtHandler(a.Forums)
	topicMgtHandler := mgt.NewTopicMgtHandler(a.Topics, a.Moderation)
	replyMgtHandler := mgt.NewReplyMgtHandler(a.Replies, a.Moderation)
	userMgtHandler := mgt.NewUserMgtHandler(a.Users)
	cacheMgtHandler := mgt.NewCacheHandler(a.Forums, a.Runtime, a.Caps)
	repairHandler := mgt.NewRepairHandler(a.Store, a.Walker, a.Caps, a.Forums)

	sitemapHandler := seo.NewHandler(a.Sitemap)
	robotsHandler := seo.NewRobotsHandler(a.Sitemap.BaseURL())

	rateLimiter := middleware.NewIPLimiter(cfg.Security.RateLimit, time.Minute)
	auth := middleware.AuthMW(cfg.JWT, a.Users)

	gin.SetMode(cfg.App.Mode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.DenyListMW(cfg.Security))
	router.Use(middleware.RateLimitMW(rateLimiter))

	router.GET("/health", a.health)
	router.GET("/healthz", a.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/robots.txt", robotsHandler.Get)
	router.GET("/sitemap.xml", sitemapHandler.Sitemap)

	v1Group := router.Group("/api/v1")
	v1Group.Use(auth)
	{
		// Forum
		v1Group.GET("/forums", forumV1Handler.List)
		v1Group.GET("/forums/tree", forumV1Handler.Tree)
		v1Group.GET("/forum/:fid", forumV1Handler.Get)
		v1Group.GET("/forum/:fid/topics", forumV1Handler.Topics)

		// Topic
		v1Group.GET("/topic/:tid", topicV1Handler.Get)
		v1Group.GET("/topic/:tid/replies", topicV1Handler.Replies)
		v1Group.GET("/topic/:tid/revisions", topicV1Handler.Revisions)
		v1Group.POST("/topics", topicV1Handler.Create)
		v1Group.PUT("/topic/:tid", middleware.RequireUser(), topicV1Handler.Edit)

		// Reply
		v1Group.GET("/reply/:rid", replyV1Handler.Get)
		v1Group.GET("/reply/:rid/revisions", replyV1Handler.Revisions)
		v1Group.POST("/replies", replyV1Handler.Create)
		v1Group.PUT("/reply/:rid", middleware.RequireUser(), replyV1Handler.Edit)

		// Tag
		v1Group.GET("/tags", tagV1Handler.List)
		v1Group.GET("/topic/:tid/tags", tagV1Handler.ByTopic)
		v1Group.POST("/topic/:tid/tags", middleware.RequireUser(), tagV1Handler.Add)
		v1Group.DELETE("/topic/:tid/tags", middleware.RequireUser(), tagV1Handler.Remove)

		// User
		v1Group.POST("/user/register", userV1Handler.Register)
		v1Group.POST("/user/login", userV1Handler.Login)
		v1Group.GET("/user/me", middleware.RequireUser(), userV1Handler.Me)
		v1Group.GET("/user/:uid", userV1Handler.Get)

		v1Group.GET("/nonce", nonceHandler.Issue)
		v1Group.GET("/live", liveHandler.Serve)
	}

	// Management API (mgt) - 强制 IP 白名单
	mgtGroup := router.Group("/api/mgt")
	mgtGroup.Use(middleware.AdminWhitelistMW(cfg.Security), auth, middleware.RequireUser())
	{
		mgtGroup.POST("/forum", forumMgtHandler.Create)
		mgtGroup.PUT("/forum/:fid", forumMgtHandler.Update)
		mgtGroup.DELETE("/forum/:fid", forumMgtHandler.Delete)

		mgtGroup.POST("/topic/:tid/moderate", topicMgtHandler.Moderate)
		mgtGroup.POST("/topic/:tid/move", topicMgtHandler.Move)
		mgtGroup.POST("/topic/:tid/split", topicMgtHandler.Split)
		mgtGroup.POST("/topic/:tid/merge", topicMgtHandler.Merge)

		mgtGroup.POST("/reply/:rid/moderate", replyMgtHandler.Moderate)
		mgtGroup.POST("/reply/:rid/move", replyMgtHandler.Move)

		mgtGroup.GET("/users", userMgtHandler.List)
		mgtGroup.PUT("/user/:uid/role", userMgtHandler.SetRole)
		mgtGroup.PUT("/user/:uid/status", userMgtHandler.SetStatus)

		mgtGroup.POST("/repair/recount", repairHandler.Recount)
		mgtGroup.POST("/cache/flush", cacheMgtHandler.Flush)
		mgtGroup.GET("/runtime", cacheMgtHandler.Runtime)
	}

	return router
}

// health 健康检查
func (a *App) health(c *gin.Context) {
	if err := a.DB.PingContext(c.Request.Context()); err != nil {
		c.JSON(503, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{
		"status":    "healthy",
		"runtime":   a.Runtime.Status(),
		"timestamp": time.Now().Unix(),
	})
}

// healthz 详细版, 用于负载均衡
func (a *App) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	status := "ok"
	checks := make(map[string]string)

	if err := a.DB.PingContext(ctx); err != nil {
		status = "error"
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status = "error"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	code := 200
	if status != "ok" {
		code = 503
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}
