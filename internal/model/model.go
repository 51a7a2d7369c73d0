// Package model defines the domain types used across the application.
package model

// PendingKind names the interactive input a chat is waiting for.
type PendingKind string

// Supported pending-input kinds.
const (
	PendingNone   PendingKind = ""
	PendingFilter PendingKind = "filter"
)

// PendingInput marks which subscription, if any, is awaiting a typed
// filter term from the chat.
type PendingInput struct {
	Kind         PendingKind `json:"kind,omitempty"`
	Subscription string      `json:"subscription,omitempty"`
}

// AwaitingFilter reports whether the chat's next plain-text message should
// be consumed as a filter term.
func (p PendingInput) AwaitingFilter() bool {
	return p.Kind == PendingFilter && p.Subscription != ""
}

// ChatState holds everything persisted for one subscribing chat.
//
// Subscriptions maps a chat-local name to a source feed identifier.
// Cursors maps a subscription name to the highest item id already delivered
// for it; a missing entry means no delivery has happened yet. Filters maps a
// subscription name to its ordered keyword terms; a missing or empty list
// matches everything.
type ChatState struct {
	ChatID        int64               `json:"chat_id"`
	Subscriptions map[string]string   `json:"subscriptions"`
	Cursors       map[string]int64    `json:"cursors"`
	Filters       map[string][]string `json:"filters"`
	Pending       PendingInput        `json:"pending"`
}

// NewChatState creates an empty state for a chat.
func NewChatState(chatID int64) *ChatState {
	return &ChatState{
		ChatID:        chatID,
		Subscriptions: make(map[string]string),
		Cursors:       make(map[string]int64),
		Filters:       make(map[string][]string),
	}
}

// Clone returns a deep copy, safe to read while the original keeps mutating.
func (c *ChatState) Clone() *ChatState {
	cp := &ChatState{
		ChatID:        c.ChatID,
		Subscriptions: make(map[string]string, len(c.Subscriptions)),
		Cursors:       make(map[string]int64, len(c.Cursors)),
		Filters:       make(map[string][]string, len(c.Filters)),
		Pending:       c.Pending,
	}
	for name, feedID := range c.Subscriptions {
		cp.Subscriptions[name] = feedID
	}
	for name, cursor := range c.Cursors {
		cp.Cursors[name] = cursor
	}
	for name, terms := range c.Filters {
		cp.Filters[name] = append([]string(nil), terms...)
	}
	return cp
}

// Normalize replaces nil maps with empty ones, so states loaded from older
// snapshots behave like freshly created ones.
func (c *ChatState) Normalize() {
	if c.Subscriptions == nil {
		c.Subscriptions = make(map[string]string)
	}
	if c.Cursors == nil {
		c.Cursors = make(map[string]int64)
	}
	if c.Filters == nil {
		c.Filters = make(map[string][]string)
	}
}

// Item is a single fetched post. Items are ephemeral: fetched, evaluated,
// possibly delivered, then discarded. Only the ID survives, as a cursor.
type Item struct {
	ID     int64
	Author string
	Text   string
	Media  []string
}
