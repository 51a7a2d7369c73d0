package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tweetbridge/internal/model"
	"tweetbridge/internal/state"
)

// Callback actions carried in inline-keyboard data as "action:payload".
const (
	actionDelete    = "delete"
	actionAddFilter = "addfilter"
	actionFilters   = "filters"
	actionRmFilter  = "rmfilter"
	actionNoop      = "noop"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID

	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(ack); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, payload, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return nil
	}

	b.log.Info("callback",
		"action", action,
		"payload", payload,
		"chat_id", chatID,
		"user_id", cb.From.ID,
	)

	switch action {
	case actionDelete:
		removed, err := b.reg.RemoveSubscription(ctx, chatID, payload)
		if err != nil {
			return err
		}
		if !removed {
			b.reply(chatID, fmt.Sprintf("Subscription \"%s\" not found.", payload))
			return nil
		}
		b.reply(chatID, fmt.Sprintf("Subscription \"%s\" deleted.", payload))

	case actionAddFilter:
		if err := b.reg.SetPending(ctx, chatID, payload); err != nil {
			if errors.Is(err, state.ErrNoSubscription) {
				b.reply(chatID, fmt.Sprintf("Subscription \"%s\" not found.", payload))
				return nil
			}
			return err
		}
		b.reply(chatID, fmt.Sprintf("Send the keyword to add as a filter for \"%s\" (or /cancel).", payload))

	case actionFilters:
		st := b.reg.Get(chatID)
		if st == nil {
			return nil
		}
		b.sendFilterKeyboard(chatID, payload, st.Filters[payload])

	case actionRmFilter:
		name, idxStr, ok := strings.Cut(payload, ":")
		if !ok {
			return nil
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil
		}
		term, removed, rerr := b.reg.RemoveFilter(ctx, chatID, name, idx)
		if rerr != nil {
			return rerr
		}
		if !removed {
			b.reply(chatID, "That filter is already gone.")
			return nil
		}
		b.reply(chatID, fmt.Sprintf("Filter \"%s\" removed from \"%s\".", term, name))

	case actionNoop:
	}
	return nil
}

// sendEditKeyboard offers delete/filter actions for every subscription.
func (b *Bot) sendEditKeyboard(chatID int64, st *model.ChatState) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range sortedNames(st.Subscriptions) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("delete "+name, actionDelete+":"+name),
			tgbotapi.NewInlineKeyboardButtonData("add filter", actionAddFilter+":"+name),
			tgbotapi.NewInlineKeyboardButtonData("filters", actionFilters+":"+name),
		))
	}

	msg := tgbotapi.NewMessage(chatID, "Edit subscriptions:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send edit keyboard", "chat_id", chatID, "error", err)
	}
}

// sendFilterKeyboard lists a subscription's filter terms with remove buttons.
func (b *Bot) sendFilterKeyboard(chatID int64, name string, terms []string) {
	if len(terms) == 0 {
		b.reply(chatID, fmt.Sprintf("No filters for \"%s\": every media post is forwarded.", name))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, term := range terms {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("remove "+term,
				fmt.Sprintf("%s:%s:%d", actionRmFilter, name, i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Filters for \"%s\":", name))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send filter keyboard", "chat_id", chatID, "error", err)
	}
}
