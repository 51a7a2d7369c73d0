// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"tweetbridge/internal/model"
)

// Store is the durable mapping from chat ID to ChatState.
//
// Save must be atomic: after a crash, Load returns either the pre-save or
// the post-save record, never a partial one.
type Store interface {
	Load(ctx context.Context) (map[int64]*model.ChatState, error)
	Save(ctx context.Context, state *model.ChatState) error
	Close() error
}
