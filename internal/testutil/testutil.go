// Package testutil builds a fully wired forum on a temporary SQLite file and
// an in-process Redis for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"barebones/internal/app"
	"barebones/internal/core/config"
	"barebones/internal/core/database"
	"barebones/internal/core/snowflake"
	"barebones/internal/model"
	"barebones/internal/repository"
	"barebones/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Config returns a policy tuned for tests: no throttle, no link limit.
func Config() *config.Config {
	forum := config.DefaultForumConfig()
	forum.ThrottleSeconds = 0
	forum.MaxLinks = 0
	return &config.Config{
		App:      config.AppConfig{Mode: "test", BaseURL: "http://forum.test"},
		Database: config.DatabaseConfig{Driver: "sqlite"},
		JWT:      config.JWTConfig{Secret: "test-secret", Expiry: 3600},
		Cache:    config.CacheConfig{L1Cap: 8, L2TTL: 60},
		Security: config.SecurityConfig{AllowIPs: []string{"127.0.0.1"}},
		Forum:    forum,
		Webhooks: config.WebhookConfig{Timeout: 1},
	}
}

// NewDB opens a migrated SQLite database that lives as long as t.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "forum.db")}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, cfg.Driver))
	return db
}

// NewRedis starts an in-process Redis.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// Env is a wired App plus handles tests need to steer it.
type Env struct {
	*app.App
	Mini *miniredis.Miniredis
	Ctx  context.Context
}

// New builds an Env. Options adjust the config before wiring.
func New(t testing.TB, opts ...func(*config.Config)) *Env {
	t.Helper()
	require.NoError(t, snowflake.Init(&config.SnowflakeConfig{WorkerID: 1}))

	cfg := Config()
	for _, opt := range opts {
		opt(cfg)
	}
	db := NewDB(t)
	mr, rdb := NewRedis(t)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &Env{App: a, Mini: mr, Ctx: ctx}
}

// Repos 非事务仓库
func (e *Env) Repos() *repository.Repos {
	return e.Store.Repos()
}

// User inserts an active account with the given site role.
func (e *Env) User(t testing.TB, name string, role model.SiteRole) *model.User {
	t.Helper()
	u := &model.User{
		ID:        snowflake.Generate(),
		Username:  name,
		Password:  "x",
		Email:     name + "@example.com",
		SiteRole:  role,
		Status:    model.UserActive,
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, e.Repos().Users.Create(e.Ctx, u))
	return u
}

// ForumOpt 版块选项
type ForumOpt func(f *model.Forum)

// Under places the forum below parent
func Under(parent int64) ForumOpt {
	return func(f *model.Forum) { f.ParentID = parent }
}

// WithVisibility 设置可见性
func WithVisibility(v model.Visibility) ForumOpt {
	return func(f *model.Forum) { f.Visibility = v }
}

// Closed 关闭版块
func Closed() ForumOpt {
	return func(f *model.Forum) { f.Status = model.ForumClosed }
}

// Category 分类
func Category() ForumOpt {
	return func(f *model.Forum) { f.Type = model.ForumTypeCategory }
}

// Forum inserts a forum row and reloads the runtime.
func (e *Env) Forum(t testing.TB, title string, opts ...ForumOpt) *model.Forum {
	t.Helper()
	now := time.Now().Unix()
	f := &model.Forum{
		ID:         snowflake.Generate(),
		Title:      title,
		Slug:       repository.GenerateSlug(title),
		Type:       model.ForumTypeForum,
		Status:     model.ForumOpen,
		Visibility: model.VisibilityPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(f)
	}
	require.NoError(t, e.Repos().Forums.Create(e.Ctx, f))
	require.NoError(t, e.Runtime.Reload(e.Ctx))
	return f
}

// Nonce issues a form token for action as user, or as a guest at ip.
func (e *Env) Nonce(t testing.TB, action string, user *model.User, ip string) string {
	t.Helper()
	a := model.Author{AuthorIP: ip}
	if user != nil {
		a.AuthorID = user.ID
	}
	tok, err := e.Nonces.Issue(action, a.ActorKey())
	require.NoError(t, err)
	return tok
}

// Topic posts a topic as user and fails the test on error.
func (e *Env) Topic(t testing.TB, user *model.User, forumID int64, title, content string) *model.TopicDTO {
	t.Helper()
	dto, err := e.Topics.Create(e.Ctx, user, "127.0.0.1", &model.TopicRequest{
		ForumID: forumID,
		Title:   title,
		Content: content,
		Nonce:   e.Nonce(t, service.ActionTopicNew, user, "127.0.0.1"),
	})
	require.NoError(t, err)
	return dto
}

// Reply posts a reply as user and fails the test on error.
func (e *Env) Reply(t testing.TB, user *model.User, topicID int64, content string) *model.ReplyDTO {
	t.Helper()
	dto, err := e.Replies.Create(e.Ctx, user, "127.0.0.1", &model.ReplyRequest{
		TopicID: topicID,
		Content: content,
		Nonce:   e.Nonce(t, service.ActionReplyNew, user, "127.0.0.1"),
	})
	require.NoError(t, err)
	return dto
}

// Answer posts a reply to parentID in topicID as user.
func (e *Env) Answer(t testing.TB, user *model.User, topicID, parentID int64, content string) *model.ReplyDTO {
	t.Helper()
	dto, err := e.Replies.Create(e.Ctx, user, "127.0.0.1", &model.ReplyRequest{
		TopicID: topicID,
		ReplyTo: parentID,
		Content: content,
		Nonce:   e.Nonce(t, service.ActionReplyNew, user, "127.0.0.1"),
	})
	require.NoError(t, err)
	return dto
}

// ReplyRow reads the stored reply.
func (e *Env) ReplyRow(t testing.TB, id int64) *model.Reply {
	t.Helper()
	r, err := e.Repos().Replies.GetByID(e.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

// ForumRow reads the stored forum, counters included.
func (e *Env) ForumRow(t testing.TB, id int64) *model.Forum {
	t.Helper()
	f, err := e.Repos().Forums.GetByID(e.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}

// TopicRow reads the stored topic, counters included.
func (e *Env) TopicRow(t testing.TB, id int64) *model.Topic {
	t.Helper()
	tp, err := e.Repos().Topics.GetByID(e.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tp)
	return tp
}
