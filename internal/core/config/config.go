package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppVersion is overridden at build time with -ldflags "-X ...config.AppVersion=...".
var AppVersion = "0.1.0"

type InvalidationCfg struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type Config struct {
	Addr       string `yaml:"addr"`
	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`
	Version    string `yaml:"version"`

	// ESConnString is read-only after startup and reported by /v1/status.
	ESConnString   string        `yaml:"es"`
	Backend        string        `yaml:"backend"`
	BleveSeedFile  string        `yaml:"bleve_seed_file"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	BackendRPS     float64       `yaml:"backend_rps"`
	BackendBurst   int           `yaml:"backend_burst"`

	DefaultOffset int `yaml:"default_offset"`
	DefaultLimit  int `yaml:"default_limit"`

	RedisAddr        string        `yaml:"redis_addr"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	CacheOpTimeout   time.Duration `yaml:"cache_op_timeout"`
	H3Res            int           `yaml:"h3_res"`
	FeatureCacheSize int           `yaml:"feature_cache_size"`
	FeatureCacheTTL  time.Duration `yaml:"feature_cache_ttl"`

	Invalidation InvalidationCfg `yaml:"invalidation"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPath    string `yaml:"metrics_path"`
}

func Defaults() Config {
	return Config{
		Addr:             ":4000",
		LogLevel:         "info",
		Version:          AppVersion,
		ESConnString:     "http://localhost:9200/munin",
		Backend:          "elasticsearch",
		BackendTimeout:   10 * time.Second,
		BackendBurst:     20,
		DefaultOffset:    0,
		DefaultLimit:     10,
		CacheTTL:         60 * time.Second,
		CacheOpTimeout:   250 * time.Millisecond,
		H3Res:            7,
		FeatureCacheSize: 4096,
		FeatureCacheTTL:  5 * time.Minute,
		Invalidation: InvalidationCfg{
			Brokers: []string{"localhost:9092"},
			Topic:   "dataset-updates",
			GroupID: "autocomplete-invalidator",
		},
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Load layers defaults, the optional CONFIG_FILE and the environment, in that order.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg.normalized(), nil
}

// FromEnv ignores CONFIG_FILE.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg.normalized()
}

// LoadFile overlays the YAML document at path onto cfg. Absent keys keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.Version = getenv("APP_VERSION", c.Version)

	c.ESConnString = getenv("BRAGI_ES", c.ESConnString)
	c.Backend = getenv("BACKEND", c.Backend)
	c.BleveSeedFile = getenv("BLEVE_SEED_FILE", c.BleveSeedFile)
	c.BackendTimeout = getduration("BACKEND_TIMEOUT", c.BackendTimeout)
	c.BackendRPS = getfloat("BACKEND_RPS", c.BackendRPS)
	c.BackendBurst = getint("BACKEND_BURST", c.BackendBurst)

	c.DefaultOffset = getint("DEFAULT_OFFSET", c.DefaultOffset)
	c.DefaultLimit = getint("DEFAULT_LIMIT", c.DefaultLimit)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.CacheTTL = getduration("CACHE_TTL", c.CacheTTL)
	c.CacheOpTimeout = getduration("CACHE_OP_TIMEOUT", c.CacheOpTimeout)
	c.H3Res = getint("H3_RES", c.H3Res)
	c.FeatureCacheSize = getint("FEATURE_CACHE_SIZE", c.FeatureCacheSize)
	c.FeatureCacheTTL = getduration("FEATURE_CACHE_TTL", c.FeatureCacheTTL)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	c.Invalidation.Brokers = getlist("KAFKA_BROKERS", c.Invalidation.Brokers)
	c.Invalidation.Topic = getenv("KAFKA_TOPIC", c.Invalidation.Topic)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)

	c.MetricsEnabled = getbool("METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsPath = getenv("METRICS_PATH", c.MetricsPath)
}

func (c Config) normalized() Config {
	if c.H3Res < 0 {
		c.H3Res = 0
	}
	if c.H3Res > 15 {
		c.H3Res = 15
	}
	if c.BackendBurst < 1 {
		c.BackendBurst = 1
	}
	if c.Version == "" {
		c.Version = AppVersion
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a list; blanks are dropped
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
