package bot

import (
	"context"
	"errors"
	"fmt"

	"tweetbridge/internal/source"
	"tweetbridge/internal/state"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) error {
	if err := b.reg.Touch(ctx, chatID); err != nil {
		return err
	}
	b.reply(chatID, `Welcome to Tweet Bridge Bot!

Follow accounts and get their media posts forwarded here.

Quick start:
1. /add <name> <handle> - follow an account
2. /edit - add keyword filters or unfollow
3. New media posts arrive automatically.

Use /help for the full command reference.`)
	return nil
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/add <name> <handle> - follow an account under a local name
/add <handle> - follow, using the handle as the name
/list - show your subscriptions
/edit - delete subscriptions or manage filters
/cancel - abort a pending filter input

Filters are keywords: a subscription with filters only forwards
posts whose text contains at least one of them (case-insensitive).
Posts without media are never forwarded.`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) error {
	name, handle, err := ParseAddArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return nil
	}

	feedID, err := b.source.ResolveFeed(ctx, handle)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("Account @%s not found.", handle))
			return nil
		}
		b.log.Error("resolve feed", "handle", handle, "error", err)
		b.reply(chatID, fmt.Sprintf("Could not reach the source to verify @%s, try again later.", handle))
		return nil
	}

	if err := b.reg.AddSubscription(ctx, chatID, name, feedID); err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Subscribed: \"%s\" → @%s.\nNew media posts will be forwarded here. Use /edit to add keyword filters.", name, feedID))
	return nil
}

func (b *Bot) handleList(chatID int64) {
	st := b.reg.Get(chatID)
	b.reply(chatID, FormatSubscriptionList(st))
}

func (b *Bot) handleEdit(chatID int64) {
	st := b.reg.Get(chatID)
	if st == nil || len(st.Subscriptions) == 0 {
		b.reply(chatID, "You have no subscriptions yet. Use /add <name> <handle> to follow an account.")
		return
	}
	b.sendEditKeyboard(chatID, st)
}

// handleText consumes a plain-text message. While a subscription is awaiting
// a filter term, the text becomes that term; otherwise the user gets a hint.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) error {
	pending, err := b.reg.ConsumePending(ctx, chatID)
	if err != nil {
		return err
	}
	if !pending.AwaitingFilter() {
		b.reply(chatID, "Use /add <name> <handle> to follow an account, or /help for commands.")
		return nil
	}

	name := pending.Subscription
	if err := b.reg.AddFilter(ctx, chatID, name, text); err != nil {
		if errors.Is(err, state.ErrNoSubscription) {
			b.reply(chatID, fmt.Sprintf("Subscription \"%s\" no longer exists.", name))
			return nil
		}
		return err
	}
	b.reply(chatID, fmt.Sprintf("Filter \"%s\" added to \"%s\".", text, name))
	return nil
}
