package salesbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dawitel/line-sales-bridge/cache"
	"github.com/dawitel/line-sales-bridge/line"
	"github.com/dawitel/line-sales-bridge/store"
	"github.com/rs/zerolog"
)

// TextHook is called for every text message that was stored.
type TextHook func(ev line.TextEvent, msg store.StoredMessage)

// WebhookResponse is the body returned for an accepted webhook.
type WebhookResponse struct {
	Status          string `json:"status"`
	EventsProcessed int    `json:"events_processed"`
}

// Handler handles LINE webhook requests
type Handler struct {
	verifier    *Verifier
	store       *store.MessageStore
	dedup       cache.Cache
	dedupTTL    time.Duration
	onText      TextHook
	logger      zerolog.Logger
	maxBodySize int64
}

// NewHandler creates a new webhook handler. dedup may be nil.
func NewHandler(
	verifier *Verifier,
	messages *store.MessageStore,
	dedup cache.Cache,
	dedupTTL time.Duration,
	logger zerolog.Logger,
	maxBodySize int64,
) *Handler {
	if dedup == nil {
		dedup = cache.NewNoOpCache()
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxRequestBodySize
	}
	return &Handler{
		verifier:    verifier,
		store:       messages,
		dedup:       dedup,
		dedupTTL:    dedupTTL,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// OnText registers a hook run after each text message is stored.
func (h *Handler) OnText(hook TextHook) {
	h.onText = hook
}

// HandleWebhook handles incoming webhook requests
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().
				Interface("panic", rec).
				Msg("Panic recovered in webhook handler")
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limitedBody := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(limitedBody)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn().
				Int64("max_size", h.maxBodySize).
				Msg("Webhook request body exceeds maximum size")
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		writeDetail(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		h.logger.Warn().Msg("Webhook received without signature")
		writeDetail(w, http.StatusBadRequest, "Missing signature")
		return
	}

	if err := h.verifier.Verify(body, signature); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid webhook signature")
		writeDetail(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	parsed, err := line.ParseEvents(body)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to parse webhook payload")
		writeDetail(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	h.logger.Debug().
		Int("event_count", parsed.EventCount()).
		Int("text_count", len(parsed.TextEvents)).
		Msg("Processing webhook events")

	for _, ev := range parsed.TextEvents {
		h.handleText(r.Context(), ev)
	}

	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:          "ok",
		EventsProcessed: parsed.EventCount(),
	})
}

func (h *Handler) handleText(ctx context.Context, ev line.TextEvent) {
	if ev.EventID != "" {
		fresh, err := h.dedup.MarkIfNew(ctx, ev.EventID, h.dedupTTL)
		if err != nil {
			h.logger.Warn().Err(err).
				Str("event_id", ev.EventID).
				Msg("Dedup lookup failed, storing anyway")
		} else if !fresh {
			h.logger.Debug().
				Str("event_id", ev.EventID).
				Bool("redelivery", ev.IsRedelivery).
				Msg("Skipping duplicate webhook event")
			return
		}
	}

	msg := h.store.Add(ev.SenderID, ev.Text, ev.MessageID)

	if h.onText != nil {
		h.onText(ev, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
