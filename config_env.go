package salesbridge

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// envConfig mirrors the environment variables the binaries read.
type envConfig struct {
	LineChannelSecret      string `env:"LINE_CHANNEL_SECRET"`
	LineChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	LineAPIURL             string `env:"LINE_API_URL"`
	WebhookURL             string `env:"WEBHOOK_URL"`

	GoogleSheetID           string `env:"GOOGLE_SHEET_ID"`
	GoogleCredentialsBase64 string `env:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`
	ServiceAccountFile      string `env:"SERVICE_ACCOUNT_FILE,default=config/service-account.json"`
	TemplateSheet           string `env:"TEMPLATE_SHEET"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`

	AutoRecord        bool          `env:"AUTO_RECORD,default=false"`
	AutoRecordTimeout time.Duration `env:"AUTO_RECORD_TIMEOUT,default=60s"`

	Host               string `env:"HOST,default=0.0.0.0"`
	Port               int    `env:"PORT,default=8080"`
	MaxRequestBodySize int64  `env:"MAX_REQUEST_BODY_SIZE,default=1048576"`

	MessageStoreMax      int    `env:"MESSAGE_STORE_MAX,default=100"`
	MessageStoreSnapshot string `env:"MESSAGE_STORE_SNAPSHOT,default=file"`
	MessageStoreFile     string `env:"MESSAGE_STORE_FILE,default=data/messages.json"`
	MessageStoreRedisKey string `env:"MESSAGE_STORE_REDIS_KEY,default=line_sales_bridge:messages"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisTLS      bool   `env:"REDIS_TLS,default=false"`

	DedupEnabled bool          `env:"DEDUP_ENABLED,default=false"`
	DedupType    string        `env:"DEDUP_TYPE,default=memory"`
	DedupTTL     time.Duration `env:"DEDUP_TTL,default=24h"`

	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT,default=30s"`
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS,default=3"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	MCPTransport string `env:"MCP_TRANSPORT,default=stdio"`
}

// LoadConfigFromEnv reads a .env file when present, then the process
// environment, and returns a validated Config.
func LoadConfigFromEnv(dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var ec envConfig
	if _, err := env.UnmarshalFromEnviron(&ec); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return ec.builder().Build()
}

func (ec envConfig) builder() *ConfigBuilder {
	b := NewConfig().
		WithLineChannel(ec.LineChannelSecret, ec.LineChannelAccessToken).
		WithGoogleSheet(ec.GoogleSheetID, ec.GoogleCredentialsBase64, ec.ServiceAccountFile).
		WithGemini(ec.GeminiAPIKey, ec.GeminiModel).
		WithAutoRecord(ec.AutoRecord).
		WithServer(ServerConfig{
			Host:               ec.Host,
			Port:               ec.Port,
			MaxRequestBodySize: ec.MaxRequestBodySize,
		}).
		WithMessageStore(MessageStoreConfig{
			MaxMessages: ec.MessageStoreMax,
			Snapshot:    ec.MessageStoreSnapshot,
			FilePath:    ec.MessageStoreFile,
			RedisKey:    ec.MessageStoreRedisKey,
		}).
		WithLogging(LoggingConfig{
			Level:  ec.LogLevel,
			Format: ec.LogFormat,
		}).
		WithMCP(MCPConfig{Transport: ec.MCPTransport}).
		WithHTTPClient(HTTPClientConfig{Timeout: ec.HTTPTimeout})

	b.config.LineAPIURL = ec.LineAPIURL
	b.config.WebhookURL = ec.WebhookURL
	b.config.TemplateSheet = ec.TemplateSheet
	b.config.AutoRecordTimeout = ec.AutoRecordTimeout
	b.config.Retry.MaxAttempts = ec.RetryMaxAttempts

	b.config.Redis.Address = ec.RedisAddr
	b.config.Redis.Password = ec.RedisPassword
	b.config.Redis.DB = ec.RedisDB
	b.config.Redis.EnableTLS = ec.RedisTLS

	b.config.Dedup.Enabled = ec.DedupEnabled
	b.config.Dedup.Type = ec.DedupType
	b.config.Dedup.TTL = ec.DedupTTL

	return b
}
