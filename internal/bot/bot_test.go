package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tweetbridge/internal/config"
	"tweetbridge/internal/model"
	"tweetbridge/internal/source"
	"tweetbridge/internal/state"
)

// mockAPI records every outgoing chattable.
type mockAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *mockAPI) StopReceivingUpdates() {}

// texts returns the text of every plain message sent so far.
func (m *mockAPI) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *mockAPI) lastText(t *testing.T) string {
	t.Helper()
	texts := m.texts()
	if len(texts) == 0 {
		t.Fatal("no messages were sent")
	}
	return texts[len(texts)-1]
}

// stubSource resolves any handle to itself; unknown holds handles that
// resolve to ErrNotFound.
type stubSource struct {
	unknown map[string]bool
}

func (s *stubSource) ResolveFeed(_ context.Context, name string) (string, error) {
	if s.unknown[name] {
		return "", fmt.Errorf("resolve %q: %w", name, source.ErrNotFound)
	}
	return name, nil
}

func (s *stubSource) FetchRecent(context.Context, string) ([]model.Item, error) {
	return nil, nil
}

// memStore implements storage.Store in memory.
type memStore struct {
	mu    sync.Mutex
	chats map[int64]*model.ChatState
}

func newMemStore() *memStore {
	return &memStore{chats: make(map[int64]*model.ChatState)}
}

func (m *memStore) Load(context.Context) (map[int64]*model.ChatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*model.ChatState, len(m.chats))
	for id, st := range m.chats {
		out[id] = st.Clone()
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, st *model.ChatState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[st.ChatID] = st.Clone()
	return nil
}

func (m *memStore) Close() error { return nil }

type fixture struct {
	bot *Bot
	api *mockAPI
	reg *state.Registry
	src *stubSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := state.Load(context.Background(), newMemStore())
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	api := &mockAPI{}
	src := &stubSource{unknown: make(map[string]bool)}
	cfg := &config.Config{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		bot: New(api, reg, src, cfg, log),
		api: api,
		reg: reg,
		src: src,
	}
}

const (
	testChatID = int64(100)
	testUserID = int64(7)
)

// command builds an update for "/cmd args" in the test chat.
func command(cmd, args string) tgbotapi.Update {
	text := "/" + cmd
	if args != "" {
		text += " " + args
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd) + 1},
		},
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{ID: testUserID},
	}}
}

func textMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{ID: testUserID},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    data,
		From:    &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
	}}
}

func (f *fixture) handle(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	if err := f.bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatalf("handle update: %v", err)
	}
}

func TestAddSubscription(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("add", "space @SpaceAgency"))

	st := f.reg.Get(testChatID)
	if st == nil {
		t.Fatal("chat state was not created")
	}
	if got := st.Subscriptions["space"]; got != "spaceagency" {
		t.Errorf("subscription feed = %q, want %q", got, "spaceagency")
	}
	if !strings.Contains(f.api.lastText(t), "Subscribed") {
		t.Errorf("unexpected reply: %q", f.api.lastText(t))
	}
}

func TestAddUnknownHandle(t *testing.T) {
	f := newFixture(t)
	f.src.unknown["ghost"] = true

	f.handle(t, command("add", "ghost"))

	if got := f.api.lastText(t); got != "Account @ghost not found." {
		t.Errorf("reply = %q", got)
	}
	if st := f.reg.Get(testChatID); st != nil && len(st.Subscriptions) != 0 {
		t.Error("subscription was created for an unknown handle")
	}
}

func TestAddInvalidArgs(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("add", "a b c"))

	if got := f.api.lastText(t); !strings.Contains(got, "usage") {
		t.Errorf("reply = %q, want usage hint", got)
	}
}

func TestFilterEditingRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))

	// Pressing "add filter" arms the pending-input state.
	f.handle(t, callback("addfilter:space"))
	st := f.reg.Get(testChatID)
	if !st.Pending.AwaitingFilter() || st.Pending.Subscription != "space" {
		t.Fatalf("pending = %+v, want awaiting filter for space", st.Pending)
	}

	// The next plain-text message becomes the filter term.
	f.handle(t, textMessage("launch"))
	st = f.reg.Get(testChatID)
	if got := st.Filters["space"]; len(got) != 1 || got[0] != "launch" {
		t.Errorf("filters = %v, want [launch]", got)
	}
	if st.Pending.AwaitingFilter() {
		t.Error("pending input survived the filter submission")
	}
	if got := f.api.lastText(t); !strings.Contains(got, "launch") {
		t.Errorf("reply = %q", got)
	}
}

func TestCommandCancelsPendingInput(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))
	f.handle(t, callback("addfilter:space"))

	// Any recognized command interrupts the pending filter input.
	f.handle(t, command("list", ""))

	st := f.reg.Get(testChatID)
	if st.Pending.AwaitingFilter() {
		t.Error("pending input survived a command")
	}
	if len(st.Filters["space"]) != 0 {
		t.Errorf("filters = %v, want none", st.Filters["space"])
	}
	texts := f.api.texts()
	var cancelled bool
	for _, txt := range texts {
		if strings.Contains(txt, "Cancelled filter input") {
			cancelled = true
		}
	}
	if !cancelled {
		t.Errorf("no cancellation notice in %q", texts)
	}
}

func TestUnknownCommandKeepsPendingInput(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))
	f.handle(t, callback("addfilter:space"))

	// A typo'd command only earns the usage hint; the chat is still
	// awaiting its filter term.
	f.handle(t, command("bogus", ""))

	if got := f.api.lastText(t); !strings.Contains(got, "Unknown command") {
		t.Errorf("reply = %q", got)
	}
	st := f.reg.Get(testChatID)
	if !st.Pending.AwaitingFilter() || st.Pending.Subscription != "space" {
		t.Fatalf("pending = %+v, want awaiting filter for space", st.Pending)
	}

	f.handle(t, textMessage("launch"))
	if got := f.reg.Get(testChatID).Filters["space"]; len(got) != 1 || got[0] != "launch" {
		t.Errorf("filters = %v, want [launch]", got)
	}
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))
	f.handle(t, callback("addfilter:space"))

	f.handle(t, command("cancel", ""))

	if st := f.reg.Get(testChatID); st.Pending.AwaitingFilter() {
		t.Error("pending input survived /cancel")
	}
	if got := f.api.lastText(t); !strings.Contains(got, "Cancelled") {
		t.Errorf("reply = %q", got)
	}

	// A second /cancel has nothing to do.
	f.handle(t, command("cancel", ""))
	if got := f.api.lastText(t); got != "Nothing to cancel." {
		t.Errorf("reply = %q", got)
	}
}

func TestDeleteSubscription(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))
	f.handle(t, callback("addfilter:space"))
	f.handle(t, textMessage("launch"))

	f.handle(t, callback("delete:space"))

	st := f.reg.Get(testChatID)
	if len(st.Subscriptions) != 0 {
		t.Errorf("subscriptions = %v, want empty", st.Subscriptions)
	}
	if len(st.Filters) != 0 {
		t.Errorf("filters = %v, want empty", st.Filters)
	}
	if got := f.api.lastText(t); !strings.Contains(got, "deleted") {
		t.Errorf("reply = %q", got)
	}

	f.handle(t, callback("delete:space"))
	if got := f.api.lastText(t); !strings.Contains(got, "not found") {
		t.Errorf("reply to double delete = %q", got)
	}
}

func TestRemoveFilterCallback(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("add", "space spaceagency"))
	f.handle(t, callback("addfilter:space"))
	f.handle(t, textMessage("launch"))
	f.handle(t, callback("addfilter:space"))
	f.handle(t, textMessage("landing"))

	f.handle(t, callback("rmfilter:space:0"))

	st := f.reg.Get(testChatID)
	if got := st.Filters["space"]; len(got) != 1 || got[0] != "landing" {
		t.Errorf("filters = %v, want [landing]", got)
	}

	// Stale index after the list shrank.
	f.handle(t, callback("rmfilter:space:5"))
	if got := f.api.lastText(t); !strings.Contains(got, "already gone") {
		t.Errorf("reply = %q", got)
	}
}

func TestTextWithoutPendingInput(t *testing.T) {
	f := newFixture(t)

	f.handle(t, textMessage("hello there"))

	if got := f.api.lastText(t); !strings.Contains(got, "/add") {
		t.Errorf("reply = %q, want usage hint", got)
	}
}

func TestAccessDenied(t *testing.T) {
	f := newFixture(t)
	f.bot.cfg = &config.Config{AllowedUsers: []int64{999}}

	f.handle(t, command("add", "space spaceagency"))

	if got := f.api.lastText(t); got != "Access denied." {
		t.Errorf("reply = %q", got)
	}
	if st := f.reg.Get(testChatID); st != nil {
		t.Error("state was created for a denied user")
	}
}
