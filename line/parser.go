// Package line decodes LINE Messaging API webhooks and sends messages back
// through the Messaging API.
package line

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// ParseResult holds the decoded payload and its text events.
type ParseResult struct {
	Payload    WebhookPayload
	TextEvents []TextEvent
}

// EventCount returns the number of events in the payload, text or not.
func (r ParseResult) EventCount() int {
	return len(r.Payload.Events)
}

// ParseEvents decodes a webhook body. The signature must already be
// verified. Non-text events are kept in the payload but produce no
// TextEvent.
func ParseEvents(body []byte) (ParseResult, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ParseResult{}, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	texts := lo.FilterMap(payload.Events, func(e Event, _ int) (TextEvent, bool) {
		if e.Type != EventTypeMessage || e.Message == nil || e.Message.Type != MessageTypeText {
			return TextEvent{}, false
		}
		return TextEvent{
			EventID:      e.WebhookEventID,
			SenderID:     senderID(e.Source),
			Text:         e.Message.Text,
			MessageID:    e.Message.ID,
			ReplyToken:   e.ReplyToken,
			IsRedelivery: e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery,
		}, true
	})

	return ParseResult{Payload: payload, TextEvents: texts}, nil
}

// senderID prefers the user id and falls back to the group or room id.
func senderID(src *Source) string {
	if src == nil {
		return ""
	}
	switch {
	case src.UserID != "":
		return src.UserID
	case src.GroupID != "":
		return src.GroupID
	default:
		return src.RoomID
	}
}
