package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "destination": "Uxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
  "events": [
    {
      "type": "message",
      "mode": "active",
      "timestamp": 1735000000000,
      "webhookEventId": "01HEVENT1",
      "replyToken": "reply-1",
      "source": {"type": "user", "userId": "U123"},
      "message": {"id": "468789577898262530", "type": "text", "text": "12/28 PayPalで月4回プラン 35,200円"},
      "deliveryContext": {"isRedelivery": false}
    },
    {
      "type": "message",
      "webhookEventId": "01HEVENT2",
      "source": {"type": "group", "groupId": "G456", "userId": ""},
      "message": {"id": "2", "type": "sticker"}
    },
    {
      "type": "follow",
      "webhookEventId": "01HEVENT3",
      "source": {"type": "user", "userId": "U789"}
    },
    {
      "type": "message",
      "webhookEventId": "01HEVENT4",
      "source": {"type": "room", "roomId": "R1"},
      "message": {"id": "3", "type": "text", "text": "hello"},
      "deliveryContext": {"isRedelivery": true}
    }
  ]
}`

func Test_ParseEvents(t *testing.T) {
	req := require.New(t)

	res, err := ParseEvents([]byte(samplePayload))
	req.NoError(err)
	req.Equal(4, res.EventCount())
	req.Len(res.TextEvents, 2)

	first := res.TextEvents[0]
	req.Equal("U123", first.SenderID)
	req.Equal("468789577898262530", first.MessageID)
	req.Equal("01HEVENT1", first.EventID)
	req.Equal("reply-1", first.ReplyToken)
	req.False(first.IsRedelivery)

	second := res.TextEvents[1]
	req.Equal("R1", second.SenderID)
	req.Equal("hello", second.Text)
	req.True(second.IsRedelivery)
}

func Test_ParseEvents_Empty_And_Invalid(t *testing.T) {
	req := require.New(t)

	res, err := ParseEvents([]byte(`{"destination":"U1","events":[]}`))
	req.NoError(err)
	req.Equal(0, res.EventCount())
	req.Empty(res.TextEvents)

	_, err = ParseEvents([]byte(`not json`))
	req.Error(err)
}

func testGuard() *resilience.Guard {
	return resilience.NewGuard("line-test",
		resilience.BreakerSettings{MaxRequests: 100, Interval: time.Minute, Timeout: time.Minute, Threshold: 1},
		resilience.RetrySettings{InitialDelay: time.Millisecond, MaxAttempts: 3, Multiplier: 1},
		zerolog.Nop(),
	)
}

func Test_PushMessage(t *testing.T) {
	req := require.New(t)

	var got pushRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/v2/bot/message/push", r.URL.Path)
		auth = r.Header.Get("Authorization")
		req.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient("token", srv.URL, srv.Client(), testGuard(), zerolog.Nop())
	req.NoError(err)

	req.NoError(c.PushMessage(context.Background(), "U123", "売上を 5 行目に記録しました"))
	req.Equal("Bearer token", auth)
	req.Equal("U123", got.To)
	req.Len(got.Messages, 1)
	req.Equal("text", got.Messages[0].Type)
}

func Test_PushMessage_Client_Error_Is_Not_Retried(t *testing.T) {
	req := require.New(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"Invalid reply token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient("token", srv.URL, srv.Client(), testGuard(), zerolog.Nop())
	req.NoError(err)

	req.Error(c.PushMessage(context.Background(), "U123", "hi"))
	req.Equal(1, calls)
}

func Test_PushMessage_Server_Error_Is_Retried(t *testing.T) {
	req := require.New(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient("token", srv.URL, srv.Client(), testGuard(), zerolog.Nop())
	req.NoError(err)

	req.NoError(c.PushMessage(context.Background(), "U123", "hi"))
	req.Equal(3, calls)
}

func Test_NewClient_Requires_Token(t *testing.T) {
	_, err := NewClient("", "", nil, testGuard(), zerolog.Nop())
	require.ErrorIs(t, err, ErrNoAccessToken)
}
