package app

import (
	"context"
	"fmt"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/core/runtime"
	"barebones/internal/event"
	"barebones/internal/live"
	"barebones/internal/notify"
	"barebones/internal/pkg/nonce"
	"barebones/internal/pkg/pool"
	"barebones/internal/repository"
	"barebones/internal/service"
	"barebones/internal/service/seo"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// App holds every long-lived component of the forum.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client

	Store    *repository.Store
	Cache    *pool.Layered
	Runtime  *runtime.Runtime
	Bus      *event.Bus
	Caps     *service.Capabilities
	Walker   *service.Walker
	Nonces   *nonce.Issuer
	Flood    *service.FloodGate
	Guard    *service.Guard
	Hub      *live.Hub
	Notifier *notify.Notifier
	Sitemap  *seo.SitemapService

	Forums     *service.ForumService
	Topics     *service.TopicService
	Replies    *service.ReplyService
	Moderation *service.ModerationService
	Tags       *service.TagService
	Users      *service.UserService

	cancel context.CancelFunc
}

// New wires the components and loads the forum structure. rdb may be nil,
// which leaves the cache L1-only and turns the flood check off.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *redis.Client) (*App, error) {
	l2TTL := time.Duration(cfg.Cache.L2TTL) * time.Second
	l1, err := pool.NewBigCache(cfg.Cache.L1Cap, l2TTL)
	if err != nil {
		return nil, fmt.Errorf("init l1 cache: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Store:  repository.NewStore(db),
		Cache:  pool.NewLayered(l1, rdb, l2TTL),
		Bus:    event.NewBus(),
		Caps:   service.NewCapabilities(cfg.Forum.DefaultRole),
		Walker: service.NewWalker(cfg.Forum.OrphanPolicy),
		Hub:    live.NewHub(),
	}
	a.Runtime = runtime.New(a.Store.Repos().Forums)
	if err := a.Runtime.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load forums: %w", err)
	}

	a.Nonces = nonce.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.Forum.NonceTTL)*time.Second)
	a.Flood = service.NewFloodGate(rdb, time.Duration(cfg.Forum.ThrottleSeconds)*time.Second)
	a.Guard = service.NewGuard(cfg.Forum, a.Caps, a.Nonces, a.Flood)

	a.Forums = service.NewForumService(a.Store, a.Cache, a.Runtime, a.Caps, a.Walker, a.Bus)
	a.Topics = service.NewTopicService(cfg.Forum, a.Store, a.Guard, a.Walker, a.Caps, a.Runtime, a.Bus)
	a.Replies = service.NewReplyService(cfg.Forum, a.Store, a.Guard, a.Walker, a.Caps, a.Runtime, a.Bus)
	a.Moderation = service.NewModerationService(a.Store, a.Walker, a.Caps, a.Bus)
	a.Tags = service.NewTagService(a.Store, a.Caps, a.Bus)
	a.Users = service.NewUserService(a.Store, a.Cache, a.Caps, cfg.JWT, a.Bus)

	baseURL := cfg.App.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.App.Port)
	}
	a.Sitemap = seo.NewSitemapService(a.Store.Repos().Topics, a.Runtime, &seo.SitemapConfig{
		BaseURL:  baseURL,
		CacheTTL: 5 * time.Minute,
		MaxURLs:  50000,
	})

	a.Notifier = notify.NewNotifier(cfg.Webhooks.URLs, time.Duration(cfg.Webhooks.Timeout)*time.Second)

	a.subscribe()

	hubCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.Hub.Run(hubCtx)

	return a, nil
}

// subscribe 注册事件订阅, cache first so pushes never race stale reads
func (a *App) subscribe() {
	a.Bus.Subscribe("cache", a.onEvent)
	a.Bus.Subscribe("live", a.Hub.OnEvent)
	if a.Notifier.Enabled() {
		a.Bus.Subscribe("webhook", a.Notifier.OnEvent)
	}
}

// onEvent keeps the runtime and caches in step with committed writes.
func (a *App) onEvent(ctx context.Context, e event.Event) {
	chain := a.Runtime.Chain(e.ForumID)
	chain = append(chain, a.Runtime.Chain(e.FromForumID)...)

	switch e.Type {
	case event.ForumSaved, event.ForumDeleted:
		if err := a.Runtime.Reload(ctx); err != nil {
			logger.Error("runtime reload after forum change failed", logger.ErrorField(err))
		}
		chain = append(chain, a.Runtime.Chain(e.ForumID)...)
		chain = append(chain, a.Runtime.Chain(e.FromForumID)...)
		a.Sitemap.Invalidate()
	case event.TopicCreated, event.TopicStatusChanged, event.TopicMoved,
		event.TopicSplit, event.TopicMerged:
		a.Sitemap.Invalidate()
	case event.UserChanged:
		return
	}

	a.Forums.Invalidate(ctx, dedupe(chain))
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Close stops the live hub and waits for pending webhook deliveries.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.Notifier.Wait()
}
