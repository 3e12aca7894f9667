package db

import (
	"context"
	"time"
)

// Store is a key-value backend holding one hash per deferred write.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides the hash operations the deferred queue needs.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetIfExists sets one field only when key already exists and reports
	// whether it did. The check and the write are atomic.
	HSetIfExists(ctx context.Context, key, field, value string) (bool, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	// ScanHashes returns the hash keys matching a glob pattern.
	ScanHashes(ctx context.Context, pattern string) ([]string, error)
}
