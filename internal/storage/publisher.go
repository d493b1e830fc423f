// Package storage publishes generated images somewhere a browser can fetch
// them and returns the public URL.
package storage

import (
	"context"
	"strings"
)

// Publisher stores data under key and returns a publicly reachable URL.
// Implementations wrap every failure with domain.ErrPublishFailed.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
