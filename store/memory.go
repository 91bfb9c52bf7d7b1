// Package store holds the bounded, newest-first buffer of inbound chat
// messages and its optional snapshot backends.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxMessages is the capacity used when none is configured.
const DefaultMaxMessages = 100

// MessageStore is a size-capped, newest-first message buffer. All methods
// are safe for concurrent use; a single lock covers both the in-memory
// sequence and the snapshot write.
type MessageStore struct {
	mu       sync.Mutex
	messages []StoredMessage
	max      int
	snapshot Snapshotter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewMessageStore creates a store holding at most max messages. When
// snapshot holds data, the store starts from it; a failed load is logged and
// the store starts empty.
func NewMessageStore(max int, snapshot Snapshotter, logger zerolog.Logger) *MessageStore {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	if snapshot == nil {
		snapshot = NewNoOpSnapshot()
	}

	s := &MessageStore{
		messages: make([]StoredMessage, 0, max),
		max:      max,
		snapshot: snapshot,
		logger:   logger,
		now:      time.Now,
	}

	loaded, err := snapshot.Load()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load message snapshot, starting empty")
		return s
	}
	if len(loaded) > max {
		loaded = loaded[:max]
	}
	s.messages = append(s.messages, loaded...)

	if len(loaded) > 0 {
		logger.Info().Int("count", len(loaded)).Msg("Loaded messages from snapshot")
	}

	return s
}

// Add stores a new message at the front and evicts the oldest messages
// beyond capacity. Snapshot failures are logged, not returned.
func (s *MessageStore) Add(senderID, body, messageID string) StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	receivedAt := s.now()
	if len(s.messages) > 0 && receivedAt.Before(s.messages[0].ReceivedAt) {
		receivedAt = s.messages[0].ReceivedAt
	}

	msg := StoredMessage{
		ReceivedAt: receivedAt,
		SenderID:   senderID,
		Body:       body,
		MessageID:  messageID,
	}

	s.messages = append(s.messages, StoredMessage{})
	copy(s.messages[1:], s.messages)
	s.messages[0] = msg

	if len(s.messages) > s.max {
		clear(s.messages[s.max:])
		s.messages = s.messages[:s.max]
	}

	s.logger.Info().
		Str("message_id", messageID).
		Str("preview", preview(body, 50)).
		Int("total", len(s.messages)).
		Msg("Message added")

	s.persistLocked()

	return msg
}

// Recent returns up to limit messages, newest first. The result is a copy.
func (s *MessageStore) Recent(limit int) []StoredMessage {
	if limit <= 0 {
		return []StoredMessage{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(limit, len(s.messages))
	out := make([]StoredMessage, n)
	copy(out, s.messages[:n])
	return out
}

// Latest returns the newest message, if any.
func (s *MessageStore) Latest() (StoredMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return StoredMessage{}, false
	}
	return s.messages[0], true
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Cap returns the configured capacity.
func (s *MessageStore) Cap() int {
	return s.max
}

// Clear removes all messages and overwrites the snapshot.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.messages)
	s.messages = s.messages[:0]
	s.logger.Info().Msg("All messages cleared")

	s.persistLocked()
}

// Close releases the snapshot backend.
func (s *MessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Close()
}

func (s *MessageStore) persistLocked() {
	if err := s.snapshot.Save(s.messages); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save message snapshot")
	}
}

func preview(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
