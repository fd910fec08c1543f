// Package config loads Iron Drawer settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Comments CommentsConfig `mapstructure:"comments"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicURL is where browsers reach this server; the memory store
	// presigns links against it.
	PublicURL string `mapstructure:"public_url"`
	// FrameSources are extra origins allowed in preview iframes (the store endpoint).
	FrameSources []string `mapstructure:"frame_sources"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Provider         string `mapstructure:"provider"` // minio | memory
	Endpoint         string `mapstructure:"endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	SessionToken     string `mapstructure:"session_token"`
	UseSSL           *bool  `mapstructure:"use_ssl"` // nil: decided from the endpoint
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	ListWithMetadata bool   `mapstructure:"list_with_metadata"`
}

// AdminConfig enables the MinIO admin API used by the storage side panel.
type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type BrowserConfig struct {
	DisplayName   string        `mapstructure:"display_name"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	// WidgetIdleTTL is how long an unused widget stays mounted. Zero keeps
	// widgets until they are unmounted.
	WidgetIdleTTL time.Duration `mapstructure:"widget_idle_ttl"`
	Permissions   Permissions   `mapstructure:"permissions"`
}

// Permissions mirrors browser.Permissions. Kept separate so config has no
// dependency on the browser package.
type Permissions struct {
	Actions      bool `mapstructure:"actions"`
	Upload       bool `mapstructure:"upload"`
	Preview      bool `mapstructure:"preview"`
	Delete       bool `mapstructure:"delete"`
	Download     bool `mapstructure:"download"`
	Rename       bool `mapstructure:"rename"`
	CreateFolder bool `mapstructure:"create_folder"`
}

// CommentsConfig selects the comment thread store.
type CommentsConfig struct {
	Store         string `mapstructure:"store"` // memory | redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envAliases keeps the MINIO_* variables working alongside DRAWER_*.
var envAliases = map[string]string{
	"storage.endpoint":   "MINIO_ENDPOINT",
	"storage.access_key": "MINIO_ACCESS_KEY",
	"storage.secret_key": "MINIO_SECRET_KEY",
	"storage.bucket":     "MINIO_BUCKET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("storage.provider", "minio")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.session_token", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.list_with_metadata", true)
	v.SetDefault("admin.enabled", false)
	v.SetDefault("browser.display_name", "")
	v.SetDefault("browser.presign_expiry", 60*time.Second)
	v.SetDefault("browser.widget_idle_ttl", 30*time.Minute)
	v.SetDefault("browser.permissions.actions", true)
	v.SetDefault("browser.permissions.upload", true)
	v.SetDefault("browser.permissions.preview", true)
	v.SetDefault("browser.permissions.delete", true)
	v.SetDefault("browser.permissions.download", true)
	v.SetDefault("browser.permissions.rename", true)
	v.SetDefault("browser.permissions.create_folder", true)
	v.SetDefault("comments.store", "memory")
	v.SetDefault("comments.redis_addr", "localhost:6379")
	v.SetDefault("comments.redis_password", "")
	v.SetDefault("comments.redis_db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. An empty path means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DRAWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "DRAWER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	// no default, so AutomaticEnv alone would not surface it to Unmarshal
	if err := v.BindEnv("storage.use_ssl"); err != nil {
		return nil, fmt.Errorf("bind storage.use_ssl: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var problems []error
	switch c.Storage.Provider {
	case "minio":
		if c.Storage.Endpoint == "" {
			problems = append(problems, errors.New("storage.endpoint is required for the minio provider"))
		}
	case "memory":
	default:
		problems = append(problems, fmt.Errorf("unknown storage.provider %q", c.Storage.Provider))
	}
	if c.Storage.Bucket == "" {
		problems = append(problems, errors.New("storage.bucket is required"))
	}
	if c.Browser.PresignExpiry <= 0 {
		problems = append(problems, errors.New("browser.presign_expiry must be positive"))
	}
	if c.Browser.WidgetIdleTTL < 0 {
		problems = append(problems, errors.New("browser.widget_idle_ttl cannot be negative"))
	}
	switch c.Comments.Store {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Errorf("unknown comments.store %q", c.Comments.Store))
	}
	return errors.Join(problems...)
}

// Label is the name shown for the bucket in the UI.
func (c *Config) Label() string {
	if c.Browser.DisplayName != "" {
		return c.Browser.DisplayName
	}
	return c.Storage.Bucket
}
