package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float32
	UpstreamTimeout      time.Duration
	ExposeUpstreamErrors bool

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitMaxClients  int
	RateLimitStore       string

	// Redis
	RedisURL string

	// Frontend
	AllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Metrics
	MetricsEnabled bool
}

// MissingEnvError reports a required variable that is unset.
type MissingEnvError struct {
	Key string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("required environment variable %s is not set", e.Key)
}

// InvalidEnvError reports a variable whose value cannot be parsed.
type InvalidEnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidEnvError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %v", e.Key, e.Value, e.Err)
}

func (e *InvalidEnvError) Unwrap() error { return e.Err }

// Load reads the configuration from the environment, after applying a .env
// file if one exists.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds the configuration from the current process environment.
func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		Env:            getEnvOrDefault("ENV", "development"),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		RateLimitStore: strings.ToLower(getEnvOrDefault("RATE_LIMIT_STORE", StoreMemory)),
		RedisURL:       getEnvOrDefault("REDIS_URL", ""),
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "logfmt"),
		LogFile:        getEnvOrDefault("LOG_FILE", ""),
	}

	if cfg.GeminiAPIKey, err = requireEnv("GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	temperature, err := getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	cfg.GeminiTemperature = float32(temperature)

	if cfg.UpstreamTimeout, err = getEnvAsDurationOrDefault("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExposeUpstreamErrors, err = getEnvAsBoolOrDefault("EXPOSE_UPSTREAM_ERRORS", false); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getEnvAsBoolOrDefault("METRICS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.TrustProxyHeaders, err = getEnvAsBoolOrDefault("TRUST_PROXY_HEADERS", false); err != nil {
		return nil, err
	}
	if cfg.RateLimitMaxRequests, err = getEnvAsIntOrDefault("RATE_LIMIT_MAX_REQUESTS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitMaxClients, err = getEnvAsIntOrDefault("RATE_LIMIT_MAX_CLIENTS", 10000); err != nil {
		return nil, err
	}

	windowSeconds, err := getEnvAsIntOrDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Raw provider errors never leave a production deployment.
	if cfg.IsProduction() {
		cfg.ExposeUpstreamErrors = false
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimitMaxRequests < 1 {
		return &InvalidEnvError{Key: "RATE_LIMIT_MAX_REQUESTS", Value: strconv.Itoa(c.RateLimitMaxRequests), Err: fmt.Errorf("must be positive")}
	}
	if c.RateLimitWindow <= 0 {
		return &InvalidEnvError{Key: "RATE_LIMIT_WINDOW_SECONDS", Value: c.RateLimitWindow.String(), Err: fmt.Errorf("must be positive")}
	}
	if c.UpstreamTimeout <= 0 {
		return &InvalidEnvError{Key: "UPSTREAM_TIMEOUT", Value: c.UpstreamTimeout.String(), Err: fmt.Errorf("must be positive")}
	}

	switch c.RateLimitStore {
	case StoreMemory:
		if c.RateLimitMaxClients < 1 {
			return &InvalidEnvError{Key: "RATE_LIMIT_MAX_CLIENTS", Value: strconv.Itoa(c.RateLimitMaxClients), Err: fmt.Errorf("must be positive")}
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return &MissingEnvError{Key: "REDIS_URL"}
		}
	default:
		return &InvalidEnvError{Key: "RATE_LIMIT_STORE", Value: c.RateLimitStore, Err: fmt.Errorf("expected %q or %q", StoreMemory, StoreRedis)}
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func requireEnv(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", &MissingEnvError{Key: key}
	}
	return val, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) (int, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &InvalidEnvError{Key: key, Value: val, Err: err}
	}
	return n, nil
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) (float64, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, &InvalidEnvError{Key: key, Value: val, Err: err}
	}
	return f, nil
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) (bool, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, &InvalidEnvError{Key: key, Value: val, Err: err}
	}
	return b, nil
}

// getEnvAsDurationOrDefault accepts Go durations ("45s") or bare seconds ("45").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) (time.Duration, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, &InvalidEnvError{Key: key, Value: val, Err: err}
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
