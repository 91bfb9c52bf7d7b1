package salesbridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"github.com/dawitel/line-sales-bridge/mcpserver"
	"github.com/dawitel/line-sales-bridge/store"
)

const (
	// Default values
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultMaxRequestBodySize = 1 * 1024 * 1024 // 1MB
	DefaultServiceAccountFile = "config/service-account.json"
	DefaultMessageStoreFile   = "data/messages.json"
	DefaultMaxMessages        = store.DefaultMaxMessages
	DefaultDedupTTL           = 24 * time.Hour
	DefaultAutoRecordTimeout  = 60 * time.Second

	// Circuit breaker defaults
	DefaultCircuitBreakerMaxRequests = 5
	DefaultCircuitBreakerInterval    = 60 * time.Second
	DefaultCircuitBreakerTimeout     = 30 * time.Second
	DefaultCircuitBreakerThreshold   = 0.7

	// Retry defaults
	DefaultRetryInitialDelay = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultRetryMaxAttempts  = 3
	DefaultRetryMultiplier   = 2.0

	// HTTP client defaults
	DefaultHTTPTimeout = 30 * time.Second

	// Redis defaults
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second

	// Memory cache defaults
	DefaultMemoryCacheMaxSize         = 10000
	DefaultMemoryCacheCleanupInterval = 1 * time.Hour
)

// MCP transports.
const (
	TransportStdio = mcpserver.TransportStdio
	TransportHTTP  = mcpserver.TransportHTTP
)

// Config is the full configuration of the bridge.
type Config struct {
	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIURL             string

	// WebhookURL, when set, is registered as the channel's webhook
	// endpoint on startup.
	WebhookURL string

	GoogleSheetID           string
	GoogleCredentialsBase64 string
	ServiceAccountFile      string
	TemplateSheet           string

	GeminiAPIKey string
	GeminiModel  string

	// AutoRecord extracts and records every stored text message.
	AutoRecord        bool
	AutoRecordTimeout time.Duration

	Server ServerConfig

	MessageStore MessageStoreConfig

	Dedup DedupConfig

	Redis RedisConfig

	CircuitBreaker CircuitBreakerConfig

	Retry RetryConfig

	HTTPClient HTTPClientConfig

	Logging LoggingConfig

	MCP MCPConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host               string
	Port               int
	MaxRequestBodySize int64
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MessageStoreConfig configures the message buffer and its snapshot.
type MessageStoreConfig struct {
	MaxMessages int
	Snapshot    string // "none", "file" or "redis"
	FilePath    string
	RedisKey    string
}

// DedupConfig configures webhook event deduplication
type DedupConfig struct {
	Enabled         bool
	Type            string // "redis" or "memory"
	TTL             time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// RedisConfig configures Redis connection
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableTLS     bool
	TLSSkipVerify bool
}

// CircuitBreakerConfig configures circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests int
	Interval    time.Duration
	Timeout     time.Duration
	Threshold   float64 // Failure ratio threshold (0.0-1.0)
}

// RetryConfig configures retry strategy
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// HTTPClientConfig configures outbound HTTP clients
type HTTPClientConfig struct {
	Timeout time.Duration
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// MCPConfig configures the tool server.
type MCPConfig struct {
	Transport string // "stdio" or "http"
}

// ConfigBuilder provides a fluent interface for building Config
type ConfigBuilder struct {
	config *Config
}

// NewConfig creates a new ConfigBuilder with defaults
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		config: &Config{
			ServiceAccountFile: DefaultServiceAccountFile,
			AutoRecordTimeout:  DefaultAutoRecordTimeout,
			Server: ServerConfig{
				Host:               DefaultHost,
				Port:               DefaultPort,
				MaxRequestBodySize: DefaultMaxRequestBodySize,
			},
			MessageStore: MessageStoreConfig{
				MaxMessages: DefaultMaxMessages,
				Snapshot:    store.SnapshotFile,
				FilePath:    DefaultMessageStoreFile,
				RedisKey:    store.DefaultRedisKey,
			},
			Dedup: DedupConfig{
				Enabled:         false,
				Type:            "memory",
				TTL:             DefaultDedupTTL,
				MaxSize:         DefaultMemoryCacheMaxSize,
				CleanupInterval: DefaultMemoryCacheCleanupInterval,
			},
			Redis: RedisConfig{
				PoolSize:     DefaultRedisPoolSize,
				MinIdleConns: DefaultRedisMinIdleConns,
				DialTimeout:  DefaultRedisDialTimeout,
				ReadTimeout:  DefaultRedisReadTimeout,
				WriteTimeout: DefaultRedisWriteTimeout,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests: DefaultCircuitBreakerMaxRequests,
				Interval:    DefaultCircuitBreakerInterval,
				Timeout:     DefaultCircuitBreakerTimeout,
				Threshold:   DefaultCircuitBreakerThreshold,
			},
			Retry: RetryConfig{
				InitialDelay: DefaultRetryInitialDelay,
				MaxDelay:     DefaultRetryMaxDelay,
				MaxAttempts:  DefaultRetryMaxAttempts,
				Multiplier:   DefaultRetryMultiplier,
			},
			HTTPClient: HTTPClientConfig{
				Timeout: DefaultHTTPTimeout,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			MCP: MCPConfig{
				Transport: TransportStdio,
			},
		},
	}
}

// WithLineChannel sets the LINE channel secret and access token
func (b *ConfigBuilder) WithLineChannel(secret, accessToken string) *ConfigBuilder {
	b.config.LineChannelSecret = secret
	b.config.LineChannelAccessToken = accessToken
	return b
}

// WithGoogleSheet sets the spreadsheet id and the service account source
func (b *ConfigBuilder) WithGoogleSheet(sheetID, credentialsBase64, serviceAccountFile string) *ConfigBuilder {
	b.config.GoogleSheetID = sheetID
	b.config.GoogleCredentialsBase64 = credentialsBase64
	if serviceAccountFile != "" {
		b.config.ServiceAccountFile = serviceAccountFile
	}
	return b
}

// WithGemini sets the Gemini API key and model
func (b *ConfigBuilder) WithGemini(apiKey, model string) *ConfigBuilder {
	b.config.GeminiAPIKey = apiKey
	b.config.GeminiModel = model
	return b
}

// WithAutoRecord enables automatic extraction of stored messages
func (b *ConfigBuilder) WithAutoRecord(enabled bool) *ConfigBuilder {
	b.config.AutoRecord = enabled
	return b
}

// WithServer sets the HTTP listener configuration
func (b *ConfigBuilder) WithServer(server ServerConfig) *ConfigBuilder {
	b.config.Server = server
	return b
}

// WithMessageStore sets the message store configuration
func (b *ConfigBuilder) WithMessageStore(ms MessageStoreConfig) *ConfigBuilder {
	b.config.MessageStore = ms
	return b
}

// WithDedup sets the deduplication configuration
func (b *ConfigBuilder) WithDedup(dedup DedupConfig) *ConfigBuilder {
	b.config.Dedup = dedup
	return b
}

// WithRedis sets the Redis configuration
func (b *ConfigBuilder) WithRedis(redis RedisConfig) *ConfigBuilder {
	b.config.Redis = redis
	return b
}

// WithCircuitBreaker sets the circuit breaker configuration
func (b *ConfigBuilder) WithCircuitBreaker(cb CircuitBreakerConfig) *ConfigBuilder {
	b.config.CircuitBreaker = cb
	return b
}

// WithRetry sets the retry configuration
func (b *ConfigBuilder) WithRetry(retry RetryConfig) *ConfigBuilder {
	b.config.Retry = retry
	return b
}

// WithHTTPClient sets the HTTP client configuration
func (b *ConfigBuilder) WithHTTPClient(hc HTTPClientConfig) *ConfigBuilder {
	b.config.HTTPClient = hc
	return b
}

// WithLogging sets the logging configuration
func (b *ConfigBuilder) WithLogging(logging LoggingConfig) *ConfigBuilder {
	b.config.Logging = logging
	return b
}

// WithMCP sets the tool server configuration
func (b *ConfigBuilder) WithMCP(mcp MCPConfig) *ConfigBuilder {
	b.config.MCP = mcp
	return b
}

// Build validates and returns the Config
func (b *ConfigBuilder) Build() (*Config, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GoogleSheetID == "" {
		return errors.New("GoogleSheetID is required")
	}

	if c.MessageStore.MaxMessages <= 0 {
		return errors.New("message store size must be greater than 0")
	}

	switch c.MessageStore.Snapshot {
	case store.SnapshotNone, store.SnapshotRedis:
	case store.SnapshotFile:
		if c.MessageStore.FilePath == "" {
			return errors.New("message store file path is required for file snapshots")
		}
	default:
		return fmt.Errorf("invalid snapshot type: %s (must be 'none', 'file' or 'redis')", c.MessageStore.Snapshot)
	}

	if c.Dedup.Enabled {
		if c.Dedup.Type != "redis" && c.Dedup.Type != "memory" {
			return fmt.Errorf("invalid dedup type: %s (must be 'redis' or 'memory')", c.Dedup.Type)
		}
		if c.Dedup.TTL <= 0 {
			return errors.New("dedup TTL must be greater than 0")
		}
	}

	if c.usesRedis() && c.Redis.Address == "" {
		return errors.New("Redis address is required when Redis is used")
	}

	if c.CircuitBreaker.Threshold < 0 || c.CircuitBreaker.Threshold > 1 {
		return errors.New("circuit breaker threshold must be between 0 and 1")
	}

	if c.Retry.Multiplier <= 0 {
		return errors.New("retry multiplier must be greater than 0")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry max attempts must be greater than 0")
	}

	if c.MCP.Transport != TransportStdio && c.MCP.Transport != TransportHTTP {
		return fmt.Errorf("invalid MCP transport: %s (must be 'stdio' or 'http')", c.MCP.Transport)
	}

	return nil
}

func (c *Config) usesRedis() bool {
	return c.MessageStore.Snapshot == store.SnapshotRedis || (c.Dedup.Enabled && c.Dedup.Type == "redis")
}

// GoogleCredentials returns the service account JSON. A base64 encoded
// value from the environment wins over the service account file.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleCredentialsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.GoogleCredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid GOOGLE_APPLICATION_CREDENTIALS_JSON: %w", err)
		}
		if !json.Valid(decoded) {
			return nil, errors.New("invalid GOOGLE_APPLICATION_CREDENTIALS_JSON: not JSON")
		}
		return decoded, nil
	}

	path := c.ServiceAccountFile
	if path == "" {
		path = DefaultServiceAccountFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("google credentials not found: set GOOGLE_APPLICATION_CREDENTIALS_JSON or SERVICE_ACCOUNT_FILE: %w", err)
	}
	return data, nil
}

func (c *Config) breakerSettings() resilience.BreakerSettings {
	return resilience.BreakerSettings{
		MaxRequests: c.CircuitBreaker.MaxRequests,
		Interval:    c.CircuitBreaker.Interval,
		Timeout:     c.CircuitBreaker.Timeout,
		Threshold:   c.CircuitBreaker.Threshold,
	}
}

func (c *Config) retrySettings() resilience.RetrySettings {
	return resilience.RetrySettings{
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		MaxAttempts:  c.Retry.MaxAttempts,
		Multiplier:   c.Retry.Multiplier,
	}
}
