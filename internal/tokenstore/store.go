// Package tokenstore persists the operator's bearer token across restarts.
package tokenstore

import "context"

// StorageKey is the well-known key the token is stored under.
const StorageKey = "token"

// Store holds at most one token. Load returns "" when nothing is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
