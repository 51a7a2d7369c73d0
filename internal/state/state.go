// Package state owns the in-memory chat registry and persists every
// mutation through the configured store.
package state

import (
	"context"
	"fmt"
	"sync"

	"tweetbridge/internal/model"
	"tweetbridge/internal/storage"
)

// ErrNoSubscription is returned when an operation names a subscription the
// chat does not have.
var ErrNoSubscription = fmt.Errorf("no such subscription")

// Registry serializes all ChatState mutation behind one mutex and writes
// the affected record to the store after each change. The scheduler and the
// command handlers share one Registry; neither touches ChatState directly.
type Registry struct {
	store storage.Store

	mu    sync.Mutex
	chats map[int64]*model.ChatState
}

// Load builds a Registry from the store's persisted contents.
func Load(ctx context.Context, store storage.Store) (*Registry, error) {
	chats, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chat states: %w", err)
	}
	return &Registry{store: store, chats: chats}, nil
}

// Snapshot returns deep copies of every chat state, safe for a tick to read
// while chats keep mutating.
func (r *Registry) Snapshot() []*model.ChatState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ChatState, 0, len(r.chats))
	for _, st := range r.chats {
		out = append(out, st.Clone())
	}
	return out
}

// Get returns a deep copy of one chat's state, or nil if the chat has never
// interacted.
func (r *Registry) Get(chatID int64) *model.ChatState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.chats[chatID]
	if !ok {
		return nil
	}
	return st.Clone()
}

// AddSubscription binds a chat-local name to a feed ID and persists.
// Re-adding an existing name rebinds it and resets its cursor.
func (r *Registry) AddSubscription(ctx context.Context, chatID int64, name, feedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	st.Subscriptions[name] = feedID
	delete(st.Cursors, name)
	return r.persist(ctx, st)
}

// RemoveSubscription deletes a subscription along with its cursor and
// filters, keeping the maps consistent. Reports whether the name existed.
func (r *Registry) RemoveSubscription(ctx context.Context, chatID int64, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	if _, ok := st.Subscriptions[name]; !ok {
		return false, nil
	}
	delete(st.Subscriptions, name)
	delete(st.Cursors, name)
	delete(st.Filters, name)
	if st.Pending.AwaitingFilter() && st.Pending.Subscription == name {
		st.Pending = model.PendingInput{}
	}
	return true, r.persist(ctx, st)
}

// AddFilter appends a keyword term to a subscription's filter list.
func (r *Registry) AddFilter(ctx context.Context, chatID int64, name, term string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	if _, ok := st.Subscriptions[name]; !ok {
		return ErrNoSubscription
	}
	st.Filters[name] = append(st.Filters[name], term)
	return r.persist(ctx, st)
}

// RemoveFilter deletes the term at index from a subscription's filter list
// and returns it. Reports false if the subscription or index does not exist.
func (r *Registry) RemoveFilter(ctx context.Context, chatID int64, name string, index int) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	terms := st.Filters[name]
	if index < 0 || index >= len(terms) {
		return "", false, nil
	}
	term := terms[index]
	terms = append(terms[:index], terms[index+1:]...)
	if len(terms) == 0 {
		delete(st.Filters, name)
	} else {
		st.Filters[name] = terms
	}
	return term, true, r.persist(ctx, st)
}

// SetPending marks a subscription as awaiting a typed filter term.
func (r *Registry) SetPending(ctx context.Context, chatID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	if _, ok := st.Subscriptions[name]; !ok {
		return ErrNoSubscription
	}
	st.Pending = model.PendingInput{Kind: model.PendingFilter, Subscription: name}
	return r.persist(ctx, st)
}

// ConsumePending resets the chat to idle and returns what it was waiting
// for. The reset is persisted only if there was something pending.
func (r *Registry) ConsumePending(ctx context.Context, chatID int64) (model.PendingInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ensure(chatID)
	pending := st.Pending
	if pending.Kind == model.PendingNone {
		return pending, nil
	}
	st.Pending = model.PendingInput{}
	return pending, r.persist(ctx, st)
}

// AdvanceCursor raises a subscription's watermark to id if it is higher.
// The cursor never moves backwards, and a subscription deleted mid-tick is
// left alone.
func (r *Registry) AdvanceCursor(ctx context.Context, chatID int64, name string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.chats[chatID]
	if !ok {
		return nil
	}
	if _, ok := st.Subscriptions[name]; !ok {
		return nil
	}
	if id <= st.Cursors[name] {
		return nil
	}
	st.Cursors[name] = id
	return r.persist(ctx, st)
}

// Touch creates the chat's state on first interaction and persists it.
func (r *Registry) Touch(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chatID]; ok {
		return nil
	}
	return r.persist(ctx, r.ensure(chatID))
}

func (r *Registry) ensure(chatID int64) *model.ChatState {
	st, ok := r.chats[chatID]
	if !ok {
		st = model.NewChatState(chatID)
		r.chats[chatID] = st
	}
	return st
}

func (r *Registry) persist(ctx context.Context, st *model.ChatState) error {
	if err := r.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persist chat %d: %w", st.ChatID, err)
	}
	return nil
}
