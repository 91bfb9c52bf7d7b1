package salesbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dawitel/line-sales-bridge/cache"
	"github.com/dawitel/line-sales-bridge/line"
	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/dawitel/line-sales-bridge/store"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var (
	// ErrRecorderUnavailable is returned when no spreadsheet writer is configured.
	ErrRecorderUnavailable = errors.New("sales recorder not configured")

	// ErrExtractorUnavailable is returned when no language model is configured.
	ErrExtractorUnavailable = errors.New("sale extractor not configured")
)

// SaleExtractor turns a chat message into a sale record
type SaleExtractor interface {
	Extract(ctx context.Context, text string) (sheets.SaleRecord, error)
}

// Notifier pushes a text message to a LINE user, group or room
type Notifier interface {
	PushMessage(ctx context.Context, to, text string) error
}

// EndpointManager registers the webhook URL with LINE
type EndpointManager interface {
	EnsureWebhookEndpoint(ctx context.Context, url string) error
}

// SheetTitler is implemented by recorders that can report the spreadsheet title.
type SheetTitler interface {
	Title(ctx context.Context) (string, error)
}

// Option configures optional collaborators of a Bridge
type Option func(*Bridge)

// WithRecorder sets the spreadsheet writer
func WithRecorder(r sheets.Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithExtractor sets the sale extractor
func WithExtractor(e SaleExtractor) Option {
	return func(b *Bridge) { b.extractor = e }
}

// WithNotifier sets the LINE push client used by auto-record
func WithNotifier(n Notifier) Option {
	return func(b *Bridge) { b.notifier = n }
}

// WithEndpointManager sets the client that registers WebhookURL on Start
func WithEndpointManager(m EndpointManager) Option {
	return func(b *Bridge) { b.endpoints = m }
}

// HealthStatus is reported by GET /health
type HealthStatus struct {
	Status          string     `json:"status"`
	MessagesCount   int        `json:"messages_count"`
	LastMessageTime *time.Time `json:"last_message_time"`
	GoogleSheets    string     `json:"google_sheets"`
	Spreadsheet     string     `json:"spreadsheet,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Bridge wires the webhook handler, the message store and the sales
// collaborators together.
type Bridge struct {
	cfg       *Config
	logger    zerolog.Logger
	store     *store.MessageStore
	cache     cache.Cache
	redis     *redis.Client
	handler   *Handler
	recorder  sheets.Recorder
	extractor SaleExtractor
	notifier  Notifier
	endpoints EndpointManager
	mu        sync.RWMutex
	started   bool
	ctx       context.Context
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
}

// NewBridge creates a Bridge from a validated configuration
func NewBridge(cfg *Config, logger zerolog.Logger, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var redisClient *redis.Client
	if cfg.usesRedis() {
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		redisClient = client
	}

	snapshot, err := NewSnapshotter(cfg.MessageStore, cfg.Redis, redisClient)
	if err != nil {
		closeRedis(redisClient)
		return nil, fmt.Errorf("failed to create message snapshot: %w", err)
	}

	dedup, err := newDedupCache(cfg.Dedup, redisClient)
	if err != nil {
		closeRedis(redisClient)
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	messages := store.NewMessageStore(cfg.MessageStore.MaxMessages, snapshot, logger)

	if cfg.LineChannelSecret == "" {
		logger.Warn().Msg("LINE_CHANNEL_SECRET is not set, every webhook will be rejected")
	}
	verifier := NewVerifier(cfg.LineChannelSecret)
	handler := NewHandler(verifier, messages, dedup, cfg.Dedup.TTL, logger, cfg.Server.MaxRequestBodySize)

	b := &Bridge{
		cfg:     cfg,
		logger:  logger,
		store:   messages,
		cache:   dedup,
		redis:   redisClient,
		handler: handler,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if cfg.AutoRecord {
		handler.OnText(b.autoRecord)
	}

	return b, nil
}

// Start initializes and starts the bridge
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("bridge already started")
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.started = true

	b.logger.Info().
		Int("messages", b.store.Len()).
		Bool("auto_record", b.cfg.AutoRecord).
		Msg("LINE sales bridge started")

	if b.endpoints != nil && b.cfg.WebhookURL != "" {
		ctx := b.ctx
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			if err := b.endpoints.EnsureWebhookEndpoint(ctx, b.cfg.WebhookURL); err != nil {
				b.logger.Warn().Err(err).Str("url", b.cfg.WebhookURL).Msg("Failed to register webhook endpoint")
			}
		}()
	}

	return nil
}

// Stop cancels pending auto-record work, waits for it, and releases
// the cache, the store snapshot and the Redis connection.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.started = false
	b.mu.Unlock()

	b.inflight.Wait()

	if err := b.cache.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to close cache")
	}
	if err := b.store.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to close message store")
	}
	closeRedis(b.redis)

	b.logger.Info().Msg("LINE sales bridge stopped")

	return nil
}

// Health reports the store state and whether the spreadsheet is reachable
func (b *Bridge) Health(ctx context.Context) (HealthStatus, error) {
	status := HealthStatus{
		Status:        "healthy",
		MessagesCount: b.store.Len(),
		GoogleSheets:  "not configured",
	}
	if latest, ok := b.store.Latest(); ok {
		ts := latest.ReceivedAt
		status.LastMessageTime = &ts
	}

	titler, ok := b.recorder.(SheetTitler)
	if !ok {
		return status, nil
	}

	title, err := titler.Title(ctx)
	if err != nil {
		status.Status = "unhealthy"
		status.GoogleSheets = "error"
		status.Error = err.Error()
		return status, fmt.Errorf("spreadsheet unreachable: %w", err)
	}
	status.GoogleSheets = "connected"
	status.Spreadsheet = title

	return status, nil
}

// HandleWebhook returns the HTTP handler for the LINE webhook endpoint
func (b *Bridge) HandleWebhook() http.HandlerFunc {
	return b.handler.HandleWebhook
}

// Store returns the message store
func (b *Bridge) Store() *store.MessageStore {
	return b.store
}

// RecentMessages returns up to limit messages, newest first
func (b *Bridge) RecentMessages(_ context.Context, limit int) ([]store.StoredMessage, error) {
	return b.store.Recent(limit), nil
}

// RecordSale writes a sale through the configured recorder
func (b *Bridge) RecordSale(ctx context.Context, rec sheets.SaleRecord) (sheets.Result, error) {
	if b.recorder == nil {
		return sheets.Result{}, ErrRecorderUnavailable
	}
	return b.recorder.RecordSale(ctx, rec)
}

// ExtractSale parses text into a sale record without recording it
func (b *Bridge) ExtractSale(ctx context.Context, text string) (sheets.SaleRecord, error) {
	if b.extractor == nil {
		return sheets.SaleRecord{}, ErrExtractorUnavailable
	}
	return b.extractor.Extract(ctx, text)
}

// ExtractAndRecord extracts a sale from text and records it
func (b *Bridge) ExtractAndRecord(ctx context.Context, text string) (sheets.SaleRecord, sheets.Result, error) {
	rec, err := b.ExtractSale(ctx, text)
	if err != nil {
		return sheets.SaleRecord{}, sheets.Result{}, err
	}
	res, err := b.RecordSale(ctx, rec)
	return rec, res, err
}

// autoRecord runs extraction and recording for a stored message in the
// background and pushes the outcome back to the sender.
func (b *Bridge) autoRecord(ev line.TextEvent, msg store.StoredMessage) {
	if b.extractor == nil || b.recorder == nil {
		return
	}

	// Add runs under the lock so Stop never waits while new work is added.
	b.mu.RLock()
	if !b.started {
		b.mu.RUnlock()
		b.logger.Debug().Str("message_id", msg.MessageID).Msg("Bridge stopped, skipping auto-record")
		return
	}
	parent := b.ctx
	b.inflight.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.inflight.Done()

		ctx, cancel := context.WithTimeout(parent, b.cfg.AutoRecordTimeout)
		defer cancel()

		logger := b.logger.With().
			Str("message_id", msg.MessageID).
			Str("sender_id", msg.SenderID).
			Logger()

		_, res, err := b.ExtractAndRecord(ctx, msg.Body)
		var reply string
		switch {
		case err != nil:
			logger.Info().Err(err).Msg("Auto-record skipped message")
			return
		case !res.Success:
			logger.Warn().Str("result", res.Message).Msg("Auto-record failed to write sale")
			reply = res.Message
		default:
			logger.Info().Int("row", res.Row).Str("sheet", res.SheetName).Msg("Auto-recorded sale")
			reply = res.Message
		}

		if b.notifier == nil || ev.SenderID == "" {
			return
		}
		if err := b.notifier.PushMessage(ctx, ev.SenderID, reply); err != nil {
			logger.Warn().Err(err).Msg("Failed to push auto-record result")
		}
	}()
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}

var _ Notifier = (*line.Client)(nil)
var _ EndpointManager = (*line.WebhookManager)(nil)
var _ SheetTitler = (*sheets.Writer)(nil)
