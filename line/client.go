package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"github.com/rs/zerolog"
)

// DefaultAPIURL is the LINE Messaging API base URL.
const DefaultAPIURL = "https://api.line.me"

// maxTextLength is the Messaging API limit for a text message.
const maxTextLength = 5000

// ErrNoAccessToken is returned when the client has no channel access token.
var ErrNoAccessToken = errors.New("LINE channel access token is not set")

// Client sends messages through the LINE Messaging API.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
	guard       *resilience.Guard
	logger      zerolog.Logger
}

// NewClient creates a Messaging API client. An empty baseURL uses
// DefaultAPIURL.
func NewClient(accessToken, baseURL string, httpClient *http.Client, guard *resilience.Guard, logger zerolog.Logger) (*Client, error) {
	if accessToken == "" {
		return nil, ErrNoAccessToken
	}
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		accessToken: accessToken,
		baseURL:     baseURL,
		httpClient:  httpClient,
		guard:       guard,
		logger:      logger,
	}, nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// PushMessage sends a text message to a user, group or room.
func (c *Client) PushMessage(ctx context.Context, to, text string) error {
	if r := []rune(text); len(r) > maxTextLength {
		text = string(r[:maxTextLength])
	}

	body, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []textMessage{{Type: MessageTypeText, Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	if err := c.call(ctx, "line_push_message", http.MethodPost, "/v2/bot/message/push", body, nil); err != nil {
		return err
	}

	c.logger.Info().Str("to", to).Msg("Message pushed")
	return nil
}

// call sends one Messaging API request through the guard. 4xx responses
// other than 429 are not retried. out may be nil.
func (c *Client) call(ctx context.Context, operation, method, path string, body []byte, out any) error {
	return c.guard.Execute(ctx, operation, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return resilience.Stop(fmt.Errorf("failed to create request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("%s: status %d, body: %s", operation, resp.StatusCode, string(bodyBytes))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Stop(err)
			}
			return err
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resilience.Stop(fmt.Errorf("%s: failed to decode response: %w", operation, err))
		}
		return nil
	})
}
