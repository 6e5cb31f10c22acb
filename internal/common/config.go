package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	PlacesAPI   PlacesAPIConfig `toml:"places_api"`
	Overpass    OverpassConfig  `toml:"overpass"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Drift       DriftConfig     `toml:"drift"`
	Cache       CacheConfig     `toml:"cache"`
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	AllowOrigins string `toml:"allow_origins"` // CORS Access-Control-Allow-Origin value
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// PlacesAPIConfig contains Google Places API (New) configuration
type PlacesAPIConfig struct {
	APIKey         string        `toml:"api_key"`         // Google Places API key
	BaseURL        string        `toml:"base_url"`        // API root, overridable for tests
	RateLimit      string `toml:"rate_limit"`      // Minimum time between API requests (default: "100ms")
	RequestTimeout string `toml:"request_timeout"` // HTTP request timeout (default: "20s")
	LanguageCode   string        `toml:"language_code"`   // Result language (default: "en")
}

// OverpassConfig configures the OpenStreetMap place provider
type OverpassConfig struct {
	Endpoint       string `toml:"endpoint"`        // Overpass interpreter URL
	MaxParallel    int    `toml:"max_parallel"`    // Concurrent Overpass requests
	RateLimit      string `toml:"rate_limit"`      // Minimum time between queries (default: "1s")
	RequestTimeout string `toml:"request_timeout"` // HTTP request timeout (default: "25s")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey              string  `toml:"api_key"`              // Google Gemini API key
	Model               string  `toml:"model"`                // Model for all classify calls (default: "gemini-2.5-flash")
	Timeout             string  `toml:"timeout"`              // Per-call timeout as duration string (default: "30s")
	InterpretTemp       float32 `toml:"interpret_temp"`       // Interpretation temperature (default: 0.7)
	PhotoTemp           float32 `toml:"photo_temp"`           // Photo scoring temperature (default: 0.3)
	EventsTemp          float32 `toml:"events_temp"`          // Grounded events temperature (default: 0.5)
	MaxRateLimitRetries int     `toml:"max_rate_limit_retries"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`    // Anthropic API key
	Model     string `toml:"model"`      // Model for classify calls (default: "claude-haiku-4-5")
	MaxTokens int    `toml:"max_tokens"` // Maximum tokens in response (default: 2048)
	Timeout   string `toml:"timeout"`    // Per-call timeout as duration string (default: "30s")
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used for interpretation and photo scoring.
// Event search always uses Gemini because it depends on Google Search grounding.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// PlaceProvider names a place search backend
type PlaceProvider string

const (
	PlaceProviderGoogle   PlaceProvider = "google"
	PlaceProviderOverpass PlaceProvider = "overpass"
)

// DriftConfig holds the discovery pipeline limits
type DriftConfig struct {
	MaxPlaces         int           `toml:"max_places"`          // Hard cap on the aggregated list (default: 12)
	MaxQueries        int           `toml:"max_queries"`         // Search queries issued per request (default: 3)
	PageSize          int           `toml:"page_size"`           // Results requested per query (default: 8)
	DefaultRadius     int           `toml:"default_radius"`      // Meters, when request omits radius (default: 5000)
	PhotoBatchSize    int           `toml:"photo_batch_size"`    // Concurrent photo analyses per batch (default: 4)
	PhotoMaxWidth     int           `toml:"photo_max_width"`     // Pixels fetched for scoring (default: 400)
	DisplayMaxWidth   int           `toml:"display_max_width"`   // Pixels in display URLs (default: 800)
	MaxEvents         int           `toml:"max_events"`          // Events kept from the finder (default: 6)
	EventPlaceNames   int           `toml:"event_place_names"`   // Place names given to the finder (default: 5)
	EventsWaitTimeout string        `toml:"events_wait_timeout"` // Wait for events after analysis drains (default: "10s")
	MaxDuration       string        `toml:"max_duration"`        // Whole pipeline budget (default: "60s")
	PlaceProvider     PlaceProvider `toml:"place_provider"`      // "google" or "overpass"
	PhotoProxy        bool          `toml:"photo_proxy"`         // Serve photos through /api/photos/media
	PublicURL         string        `toml:"public_url"`          // Base URL for proxied photo links
}

// CacheConfig configures the photo and analysis cache
type CacheConfig struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`           // Badger directory, empty keeps the cache in memory
	PhotoTTL      string `toml:"photo_ttl"`      // Lifetime of cached photo bytes (default: "24h")
	AnalysisTTL   string `toml:"analysis_ttl"`   // Lifetime of cached analyses (default: "6h")
	PurgeSchedule string `toml:"purge_schedule"` // Cron spec for expiry purge and value log GC
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:         8085,
			Host:         "localhost",
			AllowOrigins: "*",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		PlacesAPI: PlacesAPIConfig{
			BaseURL:        "https://places.googleapis.com/v1",
			RateLimit:      "100ms",
			RequestTimeout: "20s",
			LanguageCode:   "en",
		},
		Overpass: OverpassConfig{
			Endpoint:       "https://overpass-api.de/api/interpreter",
			MaxParallel:    2,
			RateLimit:      "1s",
			RequestTimeout: "25s",
		},
		Gemini: GeminiConfig{
			Model:               "gemini-2.5-flash",
			Timeout:             "30s",
			InterpretTemp:       0.7,
			PhotoTemp:           0.3,
			EventsTemp:          0.5,
			MaxRateLimitRetries: 3,
		},
		Claude: ClaudeConfig{
			Model:     "claude-haiku-4-5",
			MaxTokens: 2048,
			Timeout:   "30s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Drift: DriftConfig{
			MaxPlaces:         12,
			MaxQueries:        3,
			PageSize:          8,
			DefaultRadius:     5000,
			PhotoBatchSize:    4,
			PhotoMaxWidth:     400,
			DisplayMaxWidth:   800,
			MaxEvents:         6,
			EventPlaceNames:   5,
			EventsWaitTimeout: "10s",
			MaxDuration:       "60s",
			PlaceProvider:     PlaceProviderGoogle,
		},
		Cache: CacheConfig{
			Enabled:       true,
			PhotoTTL:      "24h",
			AnalysisTTL:   "6h",
			PurgeSchedule: "@every 30m",
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI flags are applied afterwards by the caller with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env is optional; existing process env wins over it
	_ = godotenv.Load()

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies DRIFT_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DRIFT_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("DRIFT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DRIFT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("DRIFT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DRIFT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Places: DRIFT_ prefix first, then the name used by the web frontend
	if apiKey := os.Getenv("DRIFT_PLACES_API_KEY"); apiKey != "" {
		config.PlacesAPI.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_PLACES_API_KEY"); apiKey != "" {
		config.PlacesAPI.APIKey = apiKey
	}
	if baseURL := os.Getenv("DRIFT_PLACES_BASE_URL"); baseURL != "" {
		config.PlacesAPI.BaseURL = baseURL
	}

	if endpoint := os.Getenv("DRIFT_OVERPASS_ENDPOINT"); endpoint != "" {
		config.Overpass.Endpoint = endpoint
	}

	if apiKey := os.Getenv("DRIFT_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("DRIFT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("DRIFT_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}

	if apiKey := os.Getenv("DRIFT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("DRIFT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("DRIFT_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	if provider := os.Getenv("DRIFT_PLACE_PROVIDER"); provider != "" {
		config.Drift.PlaceProvider = PlaceProvider(strings.ToLower(provider))
	}
	if maxDuration := os.Getenv("DRIFT_MAX_DURATION"); maxDuration != "" {
		config.Drift.MaxDuration = maxDuration
	}
	if wait := os.Getenv("DRIFT_EVENTS_WAIT_TIMEOUT"); wait != "" {
		config.Drift.EventsWaitTimeout = wait
	}
	if proxy := os.Getenv("DRIFT_PHOTO_PROXY"); proxy != "" {
		if b, err := strconv.ParseBool(proxy); err == nil {
			config.Drift.PhotoProxy = b
		}
	}
	if publicURL := os.Getenv("DRIFT_PUBLIC_URL"); publicURL != "" {
		config.Drift.PublicURL = publicURL
	}

	if enabled := os.Getenv("DRIFT_CACHE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Cache.Enabled = b
		}
	}
	if path := os.Getenv("DRIFT_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks pipeline limits and duration strings
func (c *Config) Validate() error {
	d := c.Drift
	if d.MaxPlaces < 1 {
		return fmt.Errorf("drift.max_places must be positive, got %d", d.MaxPlaces)
	}
	if d.MaxQueries < 1 || d.MaxQueries > 4 {
		return fmt.Errorf("drift.max_queries must be between 1 and 4, got %d", d.MaxQueries)
	}
	if d.PhotoBatchSize < 1 {
		return fmt.Errorf("drift.photo_batch_size must be positive, got %d", d.PhotoBatchSize)
	}
	if d.PlaceProvider != PlaceProviderGoogle && d.PlaceProvider != PlaceProviderOverpass {
		return fmt.Errorf("drift.place_provider must be %q or %q, got %q", PlaceProviderGoogle, PlaceProviderOverpass, d.PlaceProvider)
	}
	if c.LLM.DefaultProvider != LLMProviderGemini && c.LLM.DefaultProvider != LLMProviderClaude {
		return fmt.Errorf("llm.default_provider must be %q or %q, got %q", LLMProviderGemini, LLMProviderClaude, c.LLM.DefaultProvider)
	}

	durations := map[string]string{
		"drift.events_wait_timeout":  d.EventsWaitTimeout,
		"drift.max_duration":         d.MaxDuration,
		"gemini.timeout":             c.Gemini.Timeout,
		"claude.timeout":             c.Claude.Timeout,
		"cache.photo_ttl":            c.Cache.PhotoTTL,
		"cache.analysis_ttl":         c.Cache.AnalysisTTL,
		"places_api.request_timeout": c.PlacesAPI.RequestTimeout,
		"overpass.request_timeout":   c.Overpass.RequestTimeout,
		"places_api.rate_limit":      c.PlacesAPI.RateLimit,
		"overpass.rate_limit":        c.Overpass.RateLimit,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> config fallback -> error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"DRIFT_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"places_api_key":    {"DRIFT_PLACES_API_KEY", "GOOGLE_PLACES_API_KEY"},
		"anthropic_api_key": {"DRIFT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
