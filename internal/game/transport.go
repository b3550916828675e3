package game

import "context"

// Courier delivers messages through the chat transport. Send posts a new
// message to a chat and returns its handle; Edit replaces the content of a
// previously sent message. Both may fail per recipient without affecting
// anyone else.
type Courier interface {
	Send(ctx context.Context, chatID int64, text string) (int64, error)
	Edit(ctx context.Context, chatID, messageID int64, text string) error
}

// Store persists whole-record game snapshots. Load returns ok=false when no
// snapshot exists, which is not an error.
type Store interface {
	Load() (Snapshot, bool, error)
	Save(Snapshot) error
}
