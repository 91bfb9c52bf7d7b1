package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// StoredMessage is one inbound chat message kept by the MessageStore.
type StoredMessage struct {
	ReceivedAt time.Time `json:"timestamp"`
	SenderID   string    `json:"user_id"`
	Body       string    `json:"text"`
	MessageID  string    `json:"message_id"`
}

// timestamp layouts accepted when reading snapshots. Older snapshots carry
// local ISO timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON accepts zone-less timestamps and a missing timestamp.
func (m *StoredMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp string `json:"timestamp"`
		SenderID  string `json:"user_id"`
		Body      string `json:"text"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = StoredMessage{
		SenderID:  raw.SenderID,
		Body:      raw.Body,
		MessageID: raw.MessageID,
	}
	if raw.Timestamp == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw.Timestamp, time.Local); err == nil {
			m.ReceivedAt = ts
			return nil
		}
	}
	return fmt.Errorf("invalid message timestamp %q", raw.Timestamp)
}
