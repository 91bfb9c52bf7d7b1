package line

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

const webhookEndpointPath = "/v2/bot/channel/webhook/endpoint"

// WebhookEndpoint is the webhook URL registered for the channel.
type WebhookEndpoint struct {
	Endpoint string `json:"endpoint"`
	Active   bool   `json:"active"`
}

// WebhookTestResult is LINE's answer to a test delivery.
type WebhookTestResult struct {
	Success    bool   `json:"success"`
	Timestamp  string `json:"timestamp"`
	StatusCode int    `json:"statusCode"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail"`
}

type endpointRequest struct {
	Endpoint string `json:"endpoint"`
}

// WebhookManager keeps the channel's webhook endpoint pointed at this
// service.
type WebhookManager struct {
	client *Client
	mu     sync.RWMutex
	known  *WebhookEndpoint
}

// NewWebhookManager creates a manager that talks through client.
func NewWebhookManager(client *Client) *WebhookManager {
	return &WebhookManager{client: client}
}

// GetWebhookEndpoint fetches the registered endpoint.
func (wm *WebhookManager) GetWebhookEndpoint(ctx context.Context) (WebhookEndpoint, error) {
	var ep WebhookEndpoint
	if err := wm.client.call(ctx, "get_webhook_endpoint", http.MethodGet, webhookEndpointPath, nil, &ep); err != nil {
		return WebhookEndpoint{}, err
	}

	wm.mu.Lock()
	wm.known = &ep
	wm.mu.Unlock()

	return ep, nil
}

// SetWebhookEndpoint registers url as the channel's webhook endpoint.
func (wm *WebhookManager) SetWebhookEndpoint(ctx context.Context, url string) error {
	body, err := json.Marshal(endpointRequest{Endpoint: url})
	if err != nil {
		return fmt.Errorf("failed to marshal endpoint request: %w", err)
	}

	if err := wm.client.call(ctx, "set_webhook_endpoint", http.MethodPut, webhookEndpointPath, body, nil); err != nil {
		return err
	}

	wm.mu.Lock()
	wm.known = &WebhookEndpoint{Endpoint: url, Active: true}
	wm.mu.Unlock()

	wm.client.logger.Info().Str("endpoint", url).Msg("Webhook endpoint registered")
	return nil
}

// TestWebhookEndpoint asks LINE to deliver a test event to url. An empty
// url tests the registered endpoint.
func (wm *WebhookManager) TestWebhookEndpoint(ctx context.Context, url string) (WebhookTestResult, error) {
	var body []byte
	if url != "" {
		b, err := json.Marshal(endpointRequest{Endpoint: url})
		if err != nil {
			return WebhookTestResult{}, fmt.Errorf("failed to marshal test request: %w", err)
		}
		body = b
	}

	var res WebhookTestResult
	if err := wm.client.call(ctx, "test_webhook_endpoint", http.MethodPost, "/v2/bot/channel/webhook/test", body, &res); err != nil {
		return WebhookTestResult{}, err
	}
	return res, nil
}

// EnsureWebhookEndpoint registers url unless it is already the endpoint.
func (wm *WebhookManager) EnsureWebhookEndpoint(ctx context.Context, url string) error {
	wm.mu.RLock()
	known := wm.known
	wm.mu.RUnlock()

	if known == nil {
		ep, err := wm.GetWebhookEndpoint(ctx)
		if err != nil {
			return err
		}
		known = &ep
	}

	if known.Endpoint == url {
		wm.client.logger.Debug().Str("endpoint", url).Msg("Webhook endpoint already registered")
		return nil
	}

	return wm.SetWebhookEndpoint(ctx, url)
}

// Cached returns the last endpoint seen, if any.
func (wm *WebhookManager) Cached() (WebhookEndpoint, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.known == nil {
		return WebhookEndpoint{}, false
	}
	return *wm.known, true
}
