package seo

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/model"
	"barebones/internal/repository"

	"github.com/gin-gonic/gin"
)

// ForumLister 版块结构来源
type ForumLister interface {
	Forums() []*model.Forum
}

// SitemapConfig Sitemap配置
type SitemapConfig struct {
	BaseURL  string
	CacheTTL time.Duration // 缓存时间
	MaxURLs  int           // 单个sitemap最大URL数
}

// SitemapService lists public forums and the published topics inside them.
type SitemapService struct {
	topics     repository.TopicRepository
	forums     ForumLister
	config     *SitemapConfig
	cache      []byte
	cacheMu    sync.RWMutex
	lastModify time.Time
}

// NewSitemapService 创建Sitemap服务
func NewSitemapService(topics repository.TopicRepository, forums ForumLister, cfg *SitemapConfig) *SitemapService {
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 5000
	}
	return &SitemapService{topics: topics, forums: forums, config: cfg}
}

// URLEntry sitemap URL条目
type URLEntry struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   string
}

// PublicForums returns forums whose own and inherited visibility is public.
func PublicForums(all []*model.Forum) []*model.Forum {
	byID := make(map[int64]*model.Forum, len(all))
	for _, f := range all {
		byID[f.ID] = f
	}
	var out []*model.Forum
	for _, f := range all {
		if effectiveVisibility(f, byID) == model.VisibilityPublic {
			out = append(out, f)
		}
	}
	return out
}

func effectiveVisibility(f *model.Forum, byID map[int64]*model.Forum) model.Visibility {
	v := f.Visibility
	seen := map[int64]bool{f.ID: true}
	for id := f.ParentID; id != 0 && !seen[id]; {
		seen[id] = true
		p, ok := byID[id]
		if !ok {
			break
		}
		v = v.MoreRestrictive(p.Visibility)
		id = p.ParentID
	}
	return v
}

// Generate builds the sitemap, served from cache within CacheTTL.
func (s *SitemapService) Generate(ctx context.Context) ([]byte, error) {
	s.cacheMu.RLock()
	if s.cache != nil && time.Since(s.lastModify) < s.config.CacheTTL {
		defer s.cacheMu.RUnlock()
		return s.cache, nil
	}
	s.cacheMu.RUnlock()

	forums := PublicForums(s.forums.Forums())
	entries := make([]URLEntry, 0, len(forums))
	var ids []int64
	for _, f := range forums {
		entries = append(entries, URLEntry{
			Loc:        fmt.Sprintf("%s/forum/%d", s.config.BaseURL, f.ID),
			LastMod:    lastMod(f.LastActiveTime, f.UpdatedAt),
			ChangeFreq: "daily",
			Priority:   "0.6",
		})
		if !f.IsCategory() {
			ids = append(ids, f.ID)
		}
	}

	remaining := s.config.MaxURLs - len(entries)
	if remaining > 0 {
		topics, err := s.topics.ListPublished(ctx, ids, 0, remaining)
		if err != nil {
			return nil, fmt.Errorf("获取主题列表失败: %w", err)
		}
		for _, t := range topics {
			entries = append(entries, URLEntry{
				Loc:        fmt.Sprintf("%s/topic/%d", s.config.BaseURL, t.ID),
				LastMod:    lastMod(t.LastActiveTime, t.CreatedAt),
				ChangeFreq: "daily",
				Priority:   "0.8",
			})
		}
	}

	data := render(entries)

	s.cacheMu.Lock()
	s.cache = data
	s.lastModify = time.Now()
	s.cacheMu.Unlock()

	logger.Debug("sitemap generated", logger.Int("urls", len(entries)))
	return data, nil
}

// BaseURL 站点根地址
func (s *SitemapService) BaseURL() string {
	return s.config.BaseURL
}

// Invalidate drops the cached document
func (s *SitemapService) Invalidate() {
	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()
}

func lastMod(ts, fallback int64) string {
	if ts == 0 {
		ts = fallback
	}
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// 直接构建 XML（避免 template 自动转义）
func render(entries []URLEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	for _, e := range entries {
		buf.WriteString("  <url>\n")
		buf.WriteString("    <loc>")
		buf.WriteString(e.Loc)
		buf.WriteString("</loc>\n")
		if e.LastMod != "" {
			buf.WriteString("    <lastmod>")
			buf.WriteString(e.LastMod)
			buf.WriteString("</lastmod>\n")
		}
		buf.WriteString("    <changefreq>")
		buf.WriteString(e.ChangeFreq)
		buf.WriteString("</changefreq>\n")
		buf.WriteString("    <priority>")
		buf.WriteString(e.Priority)
		buf.WriteString("</priority>\n")
		buf.WriteString("  </url>\n")
	}
	buf.WriteString("</urlset>")
	return buf.Bytes()
}

// Handler SEO处理器
type Handler struct {
	svc *SitemapService
}

// NewHandler 创建SEO处理器
func NewHandler(svc *SitemapService) *Handler {
	return &Handler{svc: svc}
}

// Sitemap GET /sitemap.xml
func (h *Handler) Sitemap(c *gin.Context) {
	data, err := h.svc.Generate(c.Request.Context())
	if err != nil {
		logger.Error("sitemap failed", logger.ErrorField(err))
		c.String(500, "internal server error")
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(200, "application/xml", data)
}
