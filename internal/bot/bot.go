// Package bot handles Telegram updates: commands, callback queries, and the
// interactive filter-editing state machine.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tweetbridge/internal/config"
	"tweetbridge/internal/source"
	"tweetbridge/internal/state"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot routes inbound Telegram events to the subscription registry.
type Bot struct {
	api    telegramAPI
	reg    *state.Registry
	source source.Source
	cfg    *config.Config
	log    *slog.Logger
}

// New creates a Bot around an existing API client. The client is shared
// with the notification sink, so main owns it.
func New(api telegramAPI, reg *state.Registry, src source.Source, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:    api,
		reg:    reg,
		source: src,
		cfg:    cfg,
		log:    log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// It returns a non-nil error only when persisting chat state fails.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if err := b.HandleUpdate(ctx, update); err != nil {
				b.api.StopReceivingUpdates()
				return err
			}
		}
	}
}

// HandleUpdate processes a single inbound update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return nil
	}

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}
	if strings.TrimSpace(msg.Text) != "" {
		return b.handleText(ctx, msg.Chat.ID, strings.TrimSpace(msg.Text))
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

var knownCommands = map[string]bool{
	"start":  true,
	"help":   true,
	"add":    true,
	"list":   true,
	"edit":   true,
	"cancel": true,
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	if !knownCommands[cmd] {
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
		return nil
	}

	// A recognized command cancels any pending filter input: plain text is
	// the only thing consumed as a filter term.
	pending, err := b.reg.ConsumePending(ctx, chatID)
	if err != nil {
		return err
	}
	if pending.AwaitingFilter() && cmd != "cancel" {
		b.reply(chatID, fmt.Sprintf("Cancelled filter input for \"%s\".", pending.Subscription))
	}

	switch cmd {
	case "start":
		return b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "add":
		return b.handleAdd(ctx, chatID, args)
	case "list":
		b.handleList(chatID)
	case "edit":
		b.handleEdit(chatID)
	case "cancel":
		if pending.AwaitingFilter() {
			b.reply(chatID, fmt.Sprintf("Cancelled filter input for \"%s\".", pending.Subscription))
		} else {
			b.reply(chatID, "Nothing to cancel.")
		}
	}
	return nil
}
