// Package config provides configuration management for the media client.
//
// Configuration is layered: built-in defaults, then an optional YAML file (with ${VAR} and
// ${VAR:-default} expansion), then MEDIA_* environment variables. A .env file in the working
// directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultServiceURL is the public API endpoint.
	DefaultServiceURL = "https://www.kaltura.com"
	// DefaultMaxUploadConnections bounds concurrent chunk transfers.
	DefaultMaxUploadConnections = 6
)

// Config holds the client configuration
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ClientConfig holds the API client settings
type ClientConfig struct {
	ServiceURL string `yaml:"service_url" validate:"required,url"`
	ClientTag  string `yaml:"client_tag"`
	APIVersion string `yaml:"api_version"`
	PartnerID  int64  `yaml:"partner_id" validate:"gte=0"`
	// KS is a fixed session token. When empty a session is started with Secret.
	KS     string `yaml:"ks"`
	Secret string `yaml:"secret"`
	UserID string `yaml:"user_id"`
	// SessionTTL is the session token lifetime in seconds.
	SessionTTL int `yaml:"session_ttl" validate:"gte=0"`

	// AvoidQueryString sends the client tag in the body instead of the query string.
	AvoidQueryString bool `yaml:"avoid_query_string"`
	MaxRetries       int  `yaml:"max_retries" validate:"gte=0,lte=10"`

	ChunkFileDisabled       bool `yaml:"chunk_file_disabled"`
	ParallelUploadsDisabled bool `yaml:"parallel_uploads_disabled"`
	// MaxConcurrentUploadConnections is the admission pool capacity.
	MaxConcurrentUploadConnections int `yaml:"max_concurrent_upload_connections" validate:"gte=0"`
	// ChunkFileSize accepts plain bytes or a K/M suffixed size such as "5M".
	ChunkFileSize string `yaml:"chunk_file_size"`
}

// HTTPConfig holds HTTP client timeouts, in seconds
type HTTPConfig struct {
	Timeout               int `yaml:"timeout" validate:"gte=0"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout" validate:"gte=0"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// Format is auto, pretty or json. Auto picks pretty on a terminal.
	Format string `yaml:"format" validate:"omitempty,oneof=auto pretty json"`
}

// StorageConfig holds upload session persistence settings
type StorageConfig struct {
	// Enabled turns on resumable upload session tracking.
	Enabled    bool             `yaml:"enabled"`
	Type       string           `yaml:"type" validate:"omitempty,oneof=memory sqlite postgresql mongodb"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns" validate:"gte=0"`
}

// MongoDBConfig holds MongoDB settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// CacheConfig holds session token cache settings
type CacheConfig struct {
	// Type is memory, local or redis.
	Type  string      `yaml:"type" validate:"omitempty,oneof=memory local redis"`
	Local LocalConfig `yaml:"local"`
	Redis RedisConfig `yaml:"redis"`
}

// LocalConfig holds the file cache settings
type LocalConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

// RedisConfig holds Redis cache settings
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
	// TTL is the key lifetime in seconds.
	TTL int `yaml:"ttl" validate:"gte=0"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Config *Config
	// Path is the YAML file that was read, empty when none was found.
	Path string
}

// Load reads configuration from defaults, the YAML file at path (or the first of
// config/config.yaml and config.yaml when path is empty) and the environment.
func Load(path string) (*LoadResult, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()
	usedPath, err := applyYAML(cfg, path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: usedPath}, nil
}

// Default returns the built-in configuration, without file or environment overrides.
func Default() *Config {
	return buildDefaultConfig()
}

func buildDefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ServiceURL:                     DefaultServiceURL,
			SessionTTL:                     86400,
			MaxRetries:                     3,
			MaxConcurrentUploadConnections: DefaultMaxUploadConnections,
		},
		HTTP: HTTPConfig{
			Timeout:               600,
			ResponseHeaderTimeout: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "data/mediaclient.db",
			},
			PostgreSQL: PostgreSQLConfig{
				MaxConns: 10,
			},
			MongoDB: MongoDBConfig{
				Database: "mediaclient",
			},
		},
		Cache: CacheConfig{
			Type: "memory",
			Local: LocalConfig{
				CacheDir: ".cache",
			},
			Redis: RedisConfig{
				Key: "mediaclient:session",
				TTL: 3600,
			},
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
	}
}

func applyYAML(cfg *Config, path string) (string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{"config/config.yaml", "config.yaml"}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return "", fmt.Errorf("failed to read config file %s: %w", p, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders. Unset variables without a
// default are left as-is so a missing secret is visible rather than silently empty.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}

	str("MEDIA_SERVICE_URL", &cfg.Client.ServiceURL)
	str("MEDIA_CLIENT_TAG", &cfg.Client.ClientTag)
	str("MEDIA_API_VERSION", &cfg.Client.APIVersion)
	if v := os.Getenv("MEDIA_PARTNER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIA_PARTNER_ID: invalid integer %q", v))
		} else {
			cfg.Client.PartnerID = id
		}
	}
	str("MEDIA_KS", &cfg.Client.KS)
	str("MEDIA_SECRET", &cfg.Client.Secret)
	str("MEDIA_USER_ID", &cfg.Client.UserID)
	integer("MEDIA_SESSION_TTL", &cfg.Client.SessionTTL)
	boolean("MEDIA_AVOID_QUERY_STRING", &cfg.Client.AvoidQueryString)
	integer("MEDIA_MAX_RETRIES", &cfg.Client.MaxRetries)
	boolean("MEDIA_CHUNK_FILE_DISABLED", &cfg.Client.ChunkFileDisabled)
	boolean("MEDIA_PARALLEL_UPLOADS_DISABLED", &cfg.Client.ParallelUploadsDisabled)
	integer("MEDIA_MAX_UPLOAD_CONNECTIONS", &cfg.Client.MaxConcurrentUploadConnections)
	str("MEDIA_CHUNK_FILE_SIZE", &cfg.Client.ChunkFileSize)

	integer("MEDIA_HTTP_TIMEOUT", &cfg.HTTP.Timeout)
	integer("MEDIA_HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout)

	str("MEDIA_LOG_LEVEL", &cfg.Logging.Level)
	str("MEDIA_LOG_FORMAT", &cfg.Logging.Format)

	boolean("MEDIA_UPLOAD_SESSIONS_ENABLED", &cfg.Storage.Enabled)
	str("MEDIA_STORAGE_TYPE", &cfg.Storage.Type)
	str("MEDIA_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("MEDIA_POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	integer("MEDIA_POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns)
	str("MEDIA_MONGODB_URL", &cfg.Storage.MongoDB.URL)
	str("MEDIA_MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	str("MEDIA_CACHE_TYPE", &cfg.Cache.Type)
	str("MEDIA_CACHE_DIR", &cfg.Cache.Local.CacheDir)
	str("MEDIA_REDIS_URL", &cfg.Cache.Redis.URL)
	str("MEDIA_REDIS_KEY", &cfg.Cache.Redis.Key)
	integer("MEDIA_REDIS_TTL", &cfg.Cache.Redis.TTL)

	boolean("MEDIA_METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("MEDIA_METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field requirements.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := ParseByteSize(cfg.Client.ChunkFileSize); err != nil {
		return fmt.Errorf("invalid configuration: chunk_file_size: %w", err)
	}
	if cfg.Storage.Enabled {
		switch cfg.Storage.Type {
		case "postgresql":
			if cfg.Storage.PostgreSQL.URL == "" {
				return fmt.Errorf("invalid configuration: storage.postgresql.url is required")
			}
		case "mongodb":
			if cfg.Storage.MongoDB.URL == "" {
				return fmt.Errorf("invalid configuration: storage.mongodb.url is required")
			}
		}
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.Redis.URL == "" {
		return fmt.Errorf("invalid configuration: cache.redis.url is required")
	}
	return nil
}

var byteSizePattern = regexp.MustCompile(`^(\d+)([KkMmGg][Bb]?)?$`)

// ParseByteSize parses a size such as "5000000", "100K" or "5MB". An empty string is 0,
// which leaves the chunk size to the client default.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := byteSizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size %q: use bytes or a K, M or G suffix", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	switch strings.ToUpper(strings.TrimSuffix(strings.ToUpper(m[2]), "B")) {
	case "K":
		n *= 1000
	case "M":
		n *= 1000 * 1000
	case "G":
		n *= 1000 * 1000 * 1000
	}
	return n, nil
}

// ChunkFileBytes returns the configured chunk size in bytes, 0 when unset or invalid.
func (c ClientConfig) ChunkFileBytes() int64 {
	n, err := ParseByteSize(c.ChunkFileSize)
	if err != nil {
		return 0
	}
	return n
}
