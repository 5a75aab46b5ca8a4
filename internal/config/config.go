package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default blacklist applied when no keywords are configured.
var DefaultBlacklist = []string{
	"密碼", "password", "secret", "token", "key",
	"個人資料", "身分證", "電話", "地址",
}

// DefaultAllowedChars is the regexp character-class body of characters kept by
// sanitization: word characters, whitespace, Han and Bopomofo, CJK symbols and
// punctuation, full-width forms and common ASCII punctuation.
const DefaultAllowedChars = `\w\s\p{Han}\p{Bopomofo}\x{3000}-\x{303F}\x{FF00}-\x{FFEF}.,;:!?'"()\[\]{}<>/\\@#$%&*+=_~|-`

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Preview    PreviewConfig    `mapstructure:"preview"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// FetcherConfig controls retrieval from the tender portal.
type FetcherConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PathTemplate  string        `mapstructure:"path_template"` // {id} is replaced by the identifier
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	JitterMin     time.Duration `mapstructure:"jitter_min"`
	JitterMax     time.Duration `mapstructure:"jitter_max"`
	UserAgent     string        `mapstructure:"user_agent"`
	Accept        string        `mapstructure:"accept"`
	RatePerSecond float64       `mapstructure:"rate_per_second"` // 0 disables the shared limiter
	RateBurst     int           `mapstructure:"rate_burst"`
}

type FilterConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	BlacklistKeywords    []string `mapstructure:"blacklist_keywords"`
	AllowedOrganizations []string `mapstructure:"allowed_organizations"` // empty allows all
	MinLength            int      `mapstructure:"min_length"`
	MaxLength            int      `mapstructure:"max_length"`
	AllowedChars         string   `mapstructure:"allowed_chars"`
}

type PreviewConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	AutoApprove   bool `mapstructure:"auto_approve"`
	PreviewLength int  `mapstructure:"preview_length"`
}

type ProcessingConfig struct {
	Workers              int  `mapstructure:"workers"`
	BatchSize            int  `mapstructure:"batch_size"`
	ForceUpdate          bool `mapstructure:"force_update"`
	MaxRecordedErrors    int  `mapstructure:"max_recorded_errors"`
	IncludeSections      bool `mapstructure:"include_sections"`
	IncludeEntitySummary bool `mapstructure:"include_entity_summary"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogSQL          bool          `mapstructure:"log_sql"`
}

// DSN builds the driver-specific data source name.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// VectorConfig enables the Qdrant index of committed episodes.
type VectorConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Dimensions int    `mapstructure:"dimensions"`
}

// StorageConfig enables archiving of raw tender pages to S3-compatible storage.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

// Load reads configuration from file, environment and defaults, in that
// order of precedence (environment wins over file).
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("vector.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("fetcher.base_url", "https://web.pcc.gov.tw")
	v.SetDefault("fetcher.path_template", "/tps/QueryTender/query/searchTenderDetail?pkPmsMain={id}")
	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.jitter_min", time.Second)
	v.SetDefault("fetcher.jitter_max", 3*time.Second)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("fetcher.accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	v.SetDefault("fetcher.rate_per_second", 1.0)
	v.SetDefault("fetcher.rate_burst", 1)

	v.SetDefault("filter.enabled", true)
	v.SetDefault("filter.blacklist_keywords", DefaultBlacklist)
	v.SetDefault("filter.allowed_organizations", []string{})
	v.SetDefault("filter.min_length", 10)
	v.SetDefault("filter.max_length", 10000)
	v.SetDefault("filter.allowed_chars", DefaultAllowedChars)

	v.SetDefault("preview.enabled", true)
	v.SetDefault("preview.auto_approve", true)
	v.SetDefault("preview.preview_length", 200)

	v.SetDefault("processing.workers", 3)
	v.SetDefault("processing.batch_size", 10)
	v.SetDefault("processing.force_update", false)
	v.SetDefault("processing.max_recorded_errors", 50)
	v.SetDefault("processing.include_sections", true)
	v.SetDefault("processing.include_entity_summary", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tenders.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("vector.enabled", false)
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "tender_episodes")

	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.endpoint", "https://api.jina.ai/v1/embeddings")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "tender-pages")
	v.SetDefault("storage.prefix", "raw")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Filter.MinLength < 0 || c.Filter.MaxLength <= 0 {
		return errors.Newf("filter: invalid length bounds %d..%d", c.Filter.MinLength, c.Filter.MaxLength)
	}
	if c.Filter.MinLength > c.Filter.MaxLength {
		return errors.Newf("filter: min_length %d exceeds max_length %d", c.Filter.MinLength, c.Filter.MaxLength)
	}
	if c.Fetcher.MaxRetries <= 0 {
		return errors.Newf("fetcher: max_retries must be positive, got %d", c.Fetcher.MaxRetries)
	}
	if c.Fetcher.JitterMax < c.Fetcher.JitterMin {
		return errors.Newf("fetcher: jitter_max %s is below jitter_min %s", c.Fetcher.JitterMax, c.Fetcher.JitterMin)
	}
	if c.Processing.Workers <= 0 {
		return errors.Newf("processing: workers must be positive, got %d", c.Processing.Workers)
	}
	if c.Processing.BatchSize <= 0 {
		return errors.Newf("processing: batch_size must be positive, got %d", c.Processing.BatchSize)
	}
	if c.Vector.Enabled && c.Embedding.APIKey == "" {
		return errors.New("vector index enabled but embedding.api_key is empty")
	}
	return nil
}
