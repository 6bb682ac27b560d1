package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the answer-page service
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	Source  SourceConfig  `mapstructure:"source"`
	Rank    RankConfig    `mapstructure:"rank"`
	Cohere  CohereConfig  `mapstructure:"cohere"`
	Pages   PagesConfig   `mapstructure:"pages"`
	Brand   BrandConfig   `mapstructure:"brand"`
	Storage StorageConfig `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen         string   `mapstructure:"listen"`
	APIKey         string   `mapstructure:"api_key"` // optional X-Backend-Api-Key check
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SourceConfig describes the content source and how its partitions are
// cached and chunked.
type SourceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	PostsPerPage  int           `mapstructure:"posts_per_page"`
	PostsMaxPages int           `mapstructure:"posts_max_pages"`
	PagesPerPage  int           `mapstructure:"pages_per_page"`
	PagesMaxPages int           `mapstructure:"pages_max_pages"`
	MediaPerPage  int           `mapstructure:"media_per_page"`
	MediaMaxPages int           `mapstructure:"media_max_pages"`
	ChunkMaxChars int           `mapstructure:"chunk_max_chars"`
	ChunkOverlap  int           `mapstructure:"chunk_overlap"`
}

func (s SourceConfig) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if s.ChunkOverlap >= s.ChunkMaxChars {
		return fmt.Errorf("source.chunk_overlap must be smaller than source.chunk_max_chars")
	}
	return nil
}

// RankConfig controls retrieval depth and the confidence gate.
type RankConfig struct {
	FinalDocs       int     `mapstructure:"final_docs"`
	RerankThreshold float64 `mapstructure:"rerank_threshold"` // 0 disables the gate
	ExcerptChars    int     `mapstructure:"excerpt_chars"`
}

// CohereConfig contains the rerank/planner provider settings
type CohereConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	RerankModel  string        `mapstructure:"rerank_model"`
	PlannerModel string        `mapstructure:"planner_model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PagesConfig contains TTLs for stored pages and memoized answers
type PagesConfig struct {
	PageTTL   time.Duration `mapstructure:"page_ttl"`
	AnswerTTL time.Duration `mapstructure:"answer_ttl"`
}

// BrandConfig contains presentation defaults baked into rendered pages
type BrandConfig struct {
	Name         string `mapstructure:"name"`
	Class        string `mapstructure:"class"`
	PrimaryColor string `mapstructure:"primary_color"`
	ContactEmail string `mapstructure:"contact_email"`
	ContactPhone string `mapstructure:"contact_phone"`
	ContactURL   string `mapstructure:"contact_url"`
}

// StorageConfig selects the page/answer store backend
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // memory | redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory":
		return nil
	case "redis":
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr required when storage.backend is redis")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage.backend %q", s.Backend)
	}
}

// LoadConfig loads config from file, falling back to defaults plus
// PAGEWRIGHT_* environment variables when no file is present.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("source.timeout", 20*time.Second)
	viper.SetDefault("source.cache_ttl", 5*time.Minute)
	viper.SetDefault("source.posts_per_page", 50)
	viper.SetDefault("source.posts_max_pages", 20)
	viper.SetDefault("source.pages_per_page", 50)
	viper.SetDefault("source.pages_max_pages", 10)
	viper.SetDefault("source.media_per_page", 80)
	viper.SetDefault("source.media_max_pages", 10)
	viper.SetDefault("source.chunk_max_chars", 1200)
	viper.SetDefault("source.chunk_overlap", 120)
	viper.SetDefault("rank.final_docs", 6)
	viper.SetDefault("rank.rerank_threshold", 0.20)
	viper.SetDefault("rank.excerpt_chars", 1800)
	viper.SetDefault("cohere.base_url", "https://api.cohere.com")
	viper.SetDefault("cohere.rerank_model", "rerank-english-v3.0")
	viper.SetDefault("cohere.planner_model", "command-r-plus")
	viper.SetDefault("cohere.max_tokens", 900)
	viper.SetDefault("cohere.temperature", 0.2)
	viper.SetDefault("cohere.timeout", 30*time.Second)
	viper.SetDefault("pages.page_ttl", 24*time.Hour)
	viper.SetDefault("pages.answer_ttl", 12*time.Hour)
	viper.SetDefault("brand.name", "Pagewright")
	viper.SetDefault("brand.class", "pagewright")
	viper.SetDefault("brand.primary_color", "#21808d")
	viper.SetDefault("brand.contact_email", "hello@pagewright.dev")
	viper.SetDefault("brand.contact_url", "https://pagewright.dev/contact")
	viper.SetDefault("storage.backend", "memory")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PAGEWRIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when no explicit path was given.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Source.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	return &config
}
