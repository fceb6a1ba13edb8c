package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Screener  ScreenerConfig  `mapstructure:"screener"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Output    OutputConfig    `mapstructure:"output"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Meili     MeiliConfig     `mapstructure:"meili"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	API       APIConfig       `mapstructure:"api"`
	Log       LogConfig       `mapstructure:"log"`
}

type CrawlConfig struct {
	Regions  []string      `mapstructure:"regions"`
	Parallel int           `mapstructure:"parallel"`
	Enrich   bool          `mapstructure:"enrich"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	MaxTabs       int           `mapstructure:"max_tabs"`
	ProfileDir    string        `mapstructure:"profile_dir"`
	PageLoadDelay time.Duration `mapstructure:"page_load_delay"`
	SeedTimeout   time.Duration `mapstructure:"seed_timeout"`
	TabTimeout    time.Duration `mapstructure:"tab_timeout"`
	SeedMarker    string        `mapstructure:"seed_marker"`
}

type ScreenerConfig struct {
	PageSize int           `mapstructure:"page_size"`
	MaxPages int           `mapstructure:"max_pages"`
	MaxItems int           `mapstructure:"max_items"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type QuotesConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	RPS       float64       `mapstructure:"rps"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type FallbackConfig struct {
	Containers []string `mapstructure:"containers"`
	MaxDepth   int      `mapstructure:"max_depth"`
}

type OutputConfig struct {
	// Path may contain {REGION}.
	Path  string   `mapstructure:"path"`
	Mode  string   `mapstructure:"mode"`
	Sinks []string `mapstructure:"sinks"`
}

type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type MongoConfig struct {
	URL string `mapstructure:"url"`
	DB  string `mapstructure:"db"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type MeiliConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type ScheduleConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type APIConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// legacy unprefixed names still honoured for the infrastructure URLs
var legacyEnv = map[string]string{
	"nats.url":      "NATS_URL",
	"mongo.url":     "MONGO_URL",
	"redis.url":     "REDIS_URL",
	"meili.url":     "MEILI_URL",
	"meili.api_key": "MEILI_API_KEY",
	"log.level":     "LOG_LEVEL",
}

// NewViper returns a viper instance with defaults, env bindings and the
// optional crawler.yaml. Cobra flags are bound on top of it by the caller.
func NewViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, "CRAWLER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	if path := os.Getenv("CRAWLER_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("crawler")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	return v
}

// FromViper reads the config file if any and decodes the typed config.
func FromViper(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load() (*Config, error) {
	return FromViper(NewViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.regions", []string{"US"})
	v.SetDefault("crawl.parallel", 1)
	v.SetDefault("crawl.enrich", true)
	v.SetDefault("crawl.timeout", 15*time.Minute)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_tabs", 2)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.page_load_delay", 2*time.Second)
	v.SetDefault("browser.seed_timeout", 25*time.Second)
	v.SetDefault("browser.tab_timeout", 90*time.Second)
	v.SetDefault("browser.seed_marker", "predefined/saved")

	v.SetDefault("screener.page_size", 0)
	v.SetDefault("screener.max_pages", 2000)
	v.SetDefault("screener.max_items", 100000)
	v.SetDefault("screener.timeout", 20*time.Second)

	v.SetDefault("quotes.batch_size", 50)
	v.SetDefault("quotes.rps", 2.0)
	v.SetDefault("quotes.burst", 1)
	v.SetDefault("quotes.timeout", 20*time.Second)
	v.SetDefault("quotes.cache_ttl", 24*time.Hour)

	v.SetDefault("fallback.containers", []string{})
	v.SetDefault("fallback.max_depth", 16)

	v.SetDefault("output.path", "output/equities_{REGION}.csv")
	v.SetDefault("output.mode", "full")
	v.SetDefault("output.sinks", []string{"csv"})

	v.SetDefault("artifacts.dir", "artifacts")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "equities")
	v.SetDefault("redis.url", "")
	v.SetDefault("meili.url", "http://localhost:7700")
	v.SetDefault("meili.api_key", "")

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.interval", 6*time.Hour)

	v.SetDefault("api.port", "8080")
	v.SetDefault("log.level", "info")
}

func (c *Config) normalize() {
	c.Crawl.Regions = splitList(c.Crawl.Regions)
	c.Fallback.Containers = splitList(c.Fallback.Containers)
	c.Output.Sinks = splitList(c.Output.Sinks)
	c.Output.Mode = strings.ToLower(strings.TrimSpace(c.Output.Mode))
	if c.Crawl.Parallel < 1 {
		c.Crawl.Parallel = 1
	}
}

func (c *Config) Validate() error {
	if len(c.Crawl.Regions) == 0 {
		return fmt.Errorf("config: at least one region is required")
	}
	if c.Output.Mode != "full" && c.Output.Mode != "minimal" {
		return fmt.Errorf("config: output.mode must be full or minimal, got %q", c.Output.Mode)
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case "csv", "nats", "meili", "mongo":
		default:
			return fmt.Errorf("config: unknown sink %q", s)
		}
	}
	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Output.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// OutputPath expands {REGION} in the configured output path.
func (c *Config) OutputPath(region string) string {
	return strings.ReplaceAll(c.Output.Path, "{REGION}", region)
}

// splitList accepts both ["a","b"] and ["a,b"], the shape env vars arrive in.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
