package mcpserver

import (
	"context"

	"github.com/dawitel/line-sales-bridge/store"
)

// SnapshotSource reads messages from the snapshot the webhook server
// writes. It lets a separate MCP process see the webhook's messages.
type SnapshotSource struct {
	snapshot store.Snapshotter
}

// NewSnapshotSource creates a SnapshotSource over snapshot.
func NewSnapshotSource(snapshot store.Snapshotter) *SnapshotSource {
	return &SnapshotSource{snapshot: snapshot}
}

// RecentMessages loads the snapshot and returns up to limit messages.
func (s *SnapshotSource) RecentMessages(_ context.Context, limit int) ([]store.StoredMessage, error) {
	if limit <= 0 {
		return []store.StoredMessage{}, nil
	}

	messages, err := s.snapshot.Load()
	if err != nil {
		return nil, err
	}
	if len(messages) > limit {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []store.StoredMessage{}
	}
	return messages, nil
}
