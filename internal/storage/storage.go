package storage

import (
	"context"
	"errors"
)

// Storage is the key-value slot that backs a session's guest cart and coupon.
// Consumers define this interface, not the Redis implementation
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("storage: key not found")
