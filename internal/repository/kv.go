package repository

import "context"

// KV is the persistence collaborator: plain get/set/remove on text values.
// No transactions, no listing, no TTL.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
