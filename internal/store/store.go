package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetJSON when the key holds no value.
var ErrNotFound = errors.New("store: key not found")

// Store is a small durable key/value contract for JSON documents.
// Values never expire on their own; freshness is decided by the caller.
type Store interface {
	SetJSON(ctx context.Context, key string, value any) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}
