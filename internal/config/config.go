package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds gateway configuration loaded from YAML, .env, and the process
// environment. Credentials come only from the environment; the YAML file
// carries everything else.
type Config struct {
	ServerPort string

	// ProviderAPIKey authenticates the gateway against WeatherAPI.
	// GatewaySecret is the shared secret callers must present as x-api-key.
	// Either may be empty at boot; the pipeline then fails closed (401 for
	// auth, mirrored provider 401/403 for the upstream key) instead of
	// crashing.
	ProviderAPIKey string
	GatewaySecret  string

	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	CacheBackend string // "in_memory" or "memcached"
	CacheTTL     time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitCeiling int
	RateLimitWindow  time.Duration
	GlobalRateRPS    int // 0 disables the process-wide token bucket
	GlobalRateBurst  int

	BreakerEnabled bool

	ForecastDays int

	WarmCities   []string
	WarmInterval time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstream struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	RateLimit struct {
		Ceiling     int    `yaml:"ceiling"`
		Window      string `yaml:"window"`
		GlobalRPS   int    `yaml:"global_rps"`
		GlobalBurst int    `yaml:"global_burst"`
	} `yaml:"rate_limit"`

	Breaker struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"breaker"`

	Forecast struct {
		Days int `yaml:"days"`
	} `yaml:"forecast"`

	Warm struct {
		Cities   []string `yaml:"cities"`
		Interval string   `yaml:"interval"`
	} `yaml:"warm"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) relative
// to the working directory, after loading a .env file if one exists. A missing
// config file is not an error; defaults apply. Missing credentials are not an
// error either; callers must warn and fail closed instead.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	cfg := &Config{}

	cfg.ServerPort = os.Getenv("PORT")
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ProviderAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.GatewaySecret = os.Getenv("PRIVATE_API_KEY")

	cfg.UpstreamBaseURL = strings.TrimSpace(fc.Upstream.BaseURL)
	if cfg.UpstreamBaseURL == "" {
		cfg.UpstreamBaseURL = "https://api.weatherapi.com/v1"
	}
	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 7*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 300*time.Second)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitCeiling = fc.RateLimit.Ceiling
	if cfg.RateLimitCeiling <= 0 {
		cfg.RateLimitCeiling = 60
	}
	cfg.RateLimitWindow = parseDuration(fc.RateLimit.Window, time.Minute)
	cfg.GlobalRateRPS = fc.RateLimit.GlobalRPS
	cfg.GlobalRateBurst = fc.RateLimit.GlobalBurst
	if cfg.GlobalRateRPS > 0 && cfg.GlobalRateBurst <= 0 {
		cfg.GlobalRateBurst = cfg.GlobalRateRPS
	}

	cfg.BreakerEnabled = fc.Breaker.Enabled

	cfg.ForecastDays = fc.Forecast.Days
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 3
	}

	cfg.WarmCities = fc.Warm.Cities
	cfg.WarmInterval = parseDurationOrZero(fc.Warm.Interval, 0)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// input, parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty
// string or parse error. Zero and negative values pass through.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if !strings.HasPrefix(cfg.UpstreamBaseURL, "https://") {
		return fmt.Errorf("upstream.base_url must use https, got %q", cfg.UpstreamBaseURL)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.ForecastDays > 10 {
		return fmt.Errorf("forecast.days must be at most 10, got %d", cfg.ForecastDays)
	}
	return nil
}
