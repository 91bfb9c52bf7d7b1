package salesbridge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dawitel/line-sales-bridge/extract"
	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"github.com/dawitel/line-sales-bridge/line"
	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/rs/zerolog"
)

// NewSheetsWriter connects to the configured spreadsheet.
func NewSheetsWriter(ctx context.Context, cfg *Config, logger zerolog.Logger) (*sheets.Writer, error) {
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, err
	}

	backend, err := sheets.NewGoogleBackend(ctx, cfg.GoogleSheetID, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	guard := resilience.NewGuard("google-sheets", cfg.breakerSettings(), cfg.retrySettings(), logger)
	return sheets.NewWriter(backend, guard, cfg.TemplateSheet, logger), nil
}

// DefaultOptions builds the production collaborators. The spreadsheet
// writer is always created; the extractor needs GEMINI_API_KEY and the
// notifier needs LINE_CHANNEL_ACCESS_TOKEN.
func DefaultOptions(ctx context.Context, cfg *Config, logger zerolog.Logger) ([]Option, error) {
	writer, err := NewSheetsWriter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithRecorder(writer)}

	if cfg.GeminiAPIKey != "" {
		model, err := extract.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		opts = append(opts, WithExtractor(extract.NewExtractor(model, logger)))
	} else {
		logger.Warn().Msg("GEMINI_API_KEY is not set, sale extraction is disabled")
	}

	if cfg.LineChannelAccessToken != "" {
		guard := resilience.NewGuard("line-messaging", cfg.breakerSettings(), cfg.retrySettings(), logger)
		client, err := line.NewClient(
			cfg.LineChannelAccessToken,
			cfg.LineAPIURL,
			&http.Client{Timeout: cfg.HTTPClient.Timeout},
			guard,
			logger,
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithNotifier(client), WithEndpointManager(line.NewWebhookManager(client)))
	} else if cfg.AutoRecord {
		logger.Warn().Msg("LINE_CHANNEL_ACCESS_TOKEN is not set, auto-record results will not be pushed")
	}

	return opts, nil
}
