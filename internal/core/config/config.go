package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var v *viper.Viper
var cfg *Config

// Config App-wide configuration
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	App       AppConfig
	JWT       JWTConfig
	Cache     CacheConfig
	Snowflake SnowflakeConfig
	Logging   LoggingConfig
	Security  SecurityConfig
	Forum     ForumConfig
	Webhooks  WebhookConfig
}

// DatabaseConfig Database Configuration
type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	Host            string
	Port            int
	Username        string
	Password        string
	Name            string
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// RedisConfig Redis Configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// AppConfig Application Configuration
type AppConfig struct {
	Host    string
	Port    int
	Mode    string
	BaseURL string
}

// JWTConfig JWT Configuration
type JWTConfig struct {
	Secret string
	Expiry int // seconds
}

// CacheConfig Cache Configuration
type CacheConfig struct {
	L1Cap int // MB
	L2TTL int // seconds
}

// SnowflakeConfig Snowflake Configuration
type SnowflakeConfig struct {
	WorkerID int64
}

// LoggingConfig Logging Configuration
type LoggingConfig struct {
	Level  string
	Output string
}

// SecurityConfig Security Configuration
type SecurityConfig struct {
	AllowIPs  []string
	DenyIPs   []string
	RateLimit int // requests per minute per IP
}

// OrphanPolicy decides what the counter walker does with a dangling ancestor.
type OrphanPolicy string

const (
	OrphanSkip OrphanPolicy = "skip"
	OrphanFail OrphanPolicy = "fail"
)

// ForumConfig is the moderation and posting policy. It is read once at startup
// and handed to the services by value.
type ForumConfig struct {
	AllowAnonymous  bool
	ThrottleSeconds int
	DefaultRole     string
	OrphanPolicy    OrphanPolicy
	BlacklistKeys   []string
	ModerationKeys  []string
	ModerateGuests  bool // hold every anonymous post for approval
	MaxLinks        int
	NonceTTL        int // seconds
	EditLockMinutes int
	AllowRevisions  bool
	AllowTopicTags  bool
	MaxTitleLength  int
}

// WebhookConfig outgoing event notifications
type WebhookConfig struct {
	URLs    []string
	Timeout int // seconds
}

// DefaultForumConfig returns the policy used when no config file is present.
func DefaultForumConfig() ForumConfig {
	return ForumConfig{
		AllowAnonymous:  false,
		ThrottleSeconds: 10,
		DefaultRole:     "participant",
		OrphanPolicy:    OrphanSkip,
		MaxLinks:        2,
		NonceTTL:        86400,
		EditLockMinutes: 5,
		AllowRevisions:  true,
		AllowTopicTags:  true,
		MaxTitleLength:  80,
	}
}

// Init Initialize configuration with Viper
func Init(configPath string) error {
	// .env is optional
	_ = godotenv.Load()

	v = viper.New()
	cfg = &Config{}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("BAREBONES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()

	return parseConfig()
}

// setDefaults 设置默认值
func setDefaults() {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.base_url", "")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.path", "barebones.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.l1_cap", 64)
	v.SetDefault("cache.l2_ttl", 3600)

	v.SetDefault("snowflake.worker_id", 0)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 86400)

	v.SetDefault("security.allow_ips", []string{"127.0.0.1", "localhost", "::1"})
	v.SetDefault("security.rate_limit", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")

	d := DefaultForumConfig()
	v.SetDefault("forum.allow_anonymous", d.AllowAnonymous)
	v.SetDefault("forum.throttle_seconds", d.ThrottleSeconds)
	v.SetDefault("forum.default_role", d.DefaultRole)
	v.SetDefault("forum.orphan_policy", string(d.OrphanPolicy))
	v.SetDefault("forum.max_links", d.MaxLinks)
	v.SetDefault("forum.nonce_ttl", d.NonceTTL)
	v.SetDefault("forum.edit_lock_minutes", d.EditLockMinutes)
	v.SetDefault("forum.allow_revisions", d.AllowRevisions)
	v.SetDefault("forum.allow_topic_tags", d.AllowTopicTags)
	v.SetDefault("forum.max_title_length", d.MaxTitleLength)

	v.SetDefault("webhooks.timeout", 5)
}

// bindEnvs 绑定环境变量
func bindEnvs() {
	v.BindEnv("database.driver", "BAREBONES_DATABASE_DRIVER")
	v.BindEnv("database.host", "BAREBONES_DATABASE_HOST")
	v.BindEnv("database.port", "BAREBONES_DATABASE_PORT")
	v.BindEnv("database.username", "BAREBONES_DATABASE_USERNAME")
	v.BindEnv("database.password", "BAREBONES_DATABASE_PASSWORD")
	v.BindEnv("database.name", "BAREBONES_DATABASE_NAME")

	v.BindEnv("redis.host", "BAREBONES_REDIS_HOST")
	v.BindEnv("redis.port", "BAREBONES_REDIS_PORT")
	v.BindEnv("redis.password", "BAREBONES_REDIS_PASSWORD")

	v.BindEnv("jwt.secret", "BAREBONES_JWT_SECRET")
}

// parseConfig 解析配置到结构体
func parseConfig() error {
	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.Username = v.GetString("database.username")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Name = v.GetString("database.name")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = v.GetInt("database.conn_max_lifetime")

	cfg.Redis.Host = v.GetString("redis.host")
	cfg.Redis.Port = v.GetInt("redis.port")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.PoolSize = v.GetInt("redis.pool_size")

	cfg.App.Host = v.GetString("app.host")
	cfg.App.Port = v.GetInt("app.port")
	cfg.App.Mode = v.GetString("app.mode")
	cfg.App.BaseURL = strings.TrimSpace(v.GetString("app.base_url"))

	cfg.JWT.Secret = v.GetString("jwt.secret")
	cfg.JWT.Expiry = v.GetInt("jwt.expiry")

	cfg.Cache.L1Cap = v.GetInt("cache.l1_cap")
	cfg.Cache.L2TTL = v.GetInt("cache.l2_ttl")

	cfg.Snowflake.WorkerID = v.GetInt64("snowflake.worker_id")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Output = v.GetString("logging.output")

	cfg.Security.AllowIPs = v.GetStringSlice("security.allow_ips")
	cfg.Security.DenyIPs = v.GetStringSlice("security.deny_ips")
	cfg.Security.RateLimit = v.GetInt("security.rate_limit")

	cfg.Forum.AllowAnonymous = v.GetBool("forum.allow_anonymous")
	cfg.Forum.ThrottleSeconds = v.GetInt("forum.throttle_seconds")
	cfg.Forum.DefaultRole = v.GetString("forum.default_role")
	cfg.Forum.OrphanPolicy = OrphanPolicy(v.GetString("forum.orphan_policy"))
	cfg.Forum.BlacklistKeys = v.GetStringSlice("forum.blacklist_keys")
	cfg.Forum.ModerationKeys = v.GetStringSlice("forum.moderation_keys")
	cfg.Forum.ModerateGuests = v.GetBool("forum.moderate_guests")
	cfg.Forum.MaxLinks = v.GetInt("forum.max_links")
	cfg.Forum.NonceTTL = v.GetInt("forum.nonce_ttl")
	cfg.Forum.EditLockMinutes = v.GetInt("forum.edit_lock_minutes")
	cfg.Forum.AllowRevisions = v.GetBool("forum.allow_revisions")
	cfg.Forum.AllowTopicTags = v.GetBool("forum.allow_topic_tags")
	cfg.Forum.MaxTitleLength = v.GetInt("forum.max_title_length")

	cfg.Webhooks.URLs = v.GetStringSlice("webhooks.urls")
	cfg.Webhooks.Timeout = v.GetInt("webhooks.timeout")

	return cfg.Forum.Validate()
}

// Validate rejects policies the services cannot honour.
func (f *ForumConfig) Validate() error {
	switch f.OrphanPolicy {
	case OrphanSkip, OrphanFail:
	default:
		return fmt.Errorf("forum.orphan_policy must be %q or %q, got %q", OrphanSkip, OrphanFail, f.OrphanPolicy)
	}
	if f.ThrottleSeconds < 0 {
		return fmt.Errorf("forum.throttle_seconds must not be negative")
	}
	switch f.DefaultRole {
	case "moderator", "participant", "spectator", "blocked":
	default:
		return fmt.Errorf("forum.default_role %q is not assignable", f.DefaultRole)
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	return cfg
}

// GetDSN Get MySQL DSN
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Username, c.Password, c.Host, c.Port, c.Name)
}

// GetRedisAddr Get Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr Get server address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
