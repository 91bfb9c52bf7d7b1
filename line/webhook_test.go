package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeLineAPI struct {
	mu       sync.Mutex
	endpoint string
	puts     int
}

func (f *fakeLineAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == webhookEndpointPath:
		_ = json.NewEncoder(w).Encode(WebhookEndpoint{Endpoint: f.endpoint, Active: f.endpoint != ""})
	case r.Method == http.MethodPut && r.URL.Path == webhookEndpointPath:
		var body endpointRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.endpoint = body.Endpoint
		f.puts++
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v2/bot/channel/webhook/test":
		_, _ = w.Write([]byte(`{"success":true,"timestamp":"2026-01-01T00:00:00Z","statusCode":200,"reason":"OK","detail":"200"}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeLineAPI) state() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoint, f.puts
}

func newManager(t *testing.T, api *fakeLineAPI) *WebhookManager {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient("token", srv.URL, srv.Client(), testGuard(), zerolog.Nop())
	require.NoError(t, err)
	return NewWebhookManager(c)
}

func Test_EnsureWebhookEndpoint_Sets_When_Different(t *testing.T) {
	req := require.New(t)
	api := &fakeLineAPI{endpoint: "https://old.example.com/webhook"}
	wm := newManager(t, api)

	req.NoError(wm.EnsureWebhookEndpoint(context.Background(), "https://new.example.com/webhook"))
	endpoint, puts := api.state()
	req.Equal("https://new.example.com/webhook", endpoint)
	req.Equal(1, puts)

	// Cached endpoint matches, no further calls.
	req.NoError(wm.EnsureWebhookEndpoint(context.Background(), "https://new.example.com/webhook"))
	_, puts = api.state()
	req.Equal(1, puts)

	ep, ok := wm.Cached()
	req.True(ok)
	req.True(ep.Active)
}

func Test_EnsureWebhookEndpoint_Noop_When_Registered(t *testing.T) {
	req := require.New(t)
	api := &fakeLineAPI{endpoint: "https://bridge.example.com/webhook"}
	wm := newManager(t, api)

	req.NoError(wm.EnsureWebhookEndpoint(context.Background(), "https://bridge.example.com/webhook"))
	_, puts := api.state()
	req.Equal(0, puts)
}

func Test_TestWebhookEndpoint(t *testing.T) {
	req := require.New(t)
	wm := newManager(t, &fakeLineAPI{})

	res, err := wm.TestWebhookEndpoint(context.Background(), "https://bridge.example.com/webhook")
	req.NoError(err)
	req.True(res.Success)
	req.Equal(200, res.StatusCode)
}
