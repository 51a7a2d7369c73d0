package sink

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Telegram implements Sink on top of the Telegram Bot API.
type Telegram struct {
	api telegramAPI
}

// NewTelegram creates a Telegram sink around an existing bot API client.
func NewTelegram(api telegramAPI) *Telegram {
	return &Telegram{api: api}
}

// SendText sends a plain text message.
func (t *Telegram) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

// SendPhoto sends a single photo by URL with a caption.
func (t *Telegram) SendPhoto(chatID int64, url, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	if _, err := t.api.Send(photo); err != nil {
		return classify(err)
	}
	return nil
}

// maxAlbumSize is Telegram's per-album media limit; anything longer is
// rejected with a 400.
const maxAlbumSize = 10

// SendMediaGroup sends several photos as one album, truncated to Telegram's
// album limit. Telegram shows the caption of the first entry under the
// whole album.
func (t *Telegram) SendMediaGroup(chatID int64, urls []string, caption string) error {
	if len(urls) > maxAlbumSize {
		urls = urls[:maxAlbumSize]
	}
	media := make([]interface{}, 0, len(urls))
	for i, url := range urls {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(url))
		if i == 0 {
			photo.Caption = caption
		}
		media = append(media, photo)
	}
	if _, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return classify(err)
	}
	return nil
}

// classify sorts a Telegram API failure into the port's error taxonomy.
// Forbidden means the chat blocked the bot or kicked it; a 400 about an
// unknown chat is just as permanent.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 403:
			return &FatalError{Err: err}
		case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
			return &FatalError{Err: err}
		}
	}
	return &TransientError{Err: err}
}
