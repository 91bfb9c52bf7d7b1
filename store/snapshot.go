package store

// Snapshotter persists the full message sequence as a single blob.
type Snapshotter interface {
	// Load returns the stored sequence, or nil when no snapshot exists yet.
	Load() ([]StoredMessage, error)

	// Save overwrites the snapshot with messages.
	Save(messages []StoredMessage) error

	// Close releases any resources held by the snapshotter.
	Close() error
}

// NoOpSnapshot is used when durability is disabled.
type NoOpSnapshot struct{}

// NewNoOpSnapshot creates a snapshotter that never persists anything.
func NewNoOpSnapshot() *NoOpSnapshot {
	return &NoOpSnapshot{}
}

func (NoOpSnapshot) Load() ([]StoredMessage, error) { return nil, nil }

func (NoOpSnapshot) Save([]StoredMessage) error { return nil }

func (NoOpSnapshot) Close() error { return nil }
