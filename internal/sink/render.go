package sink

import "tweetbridge/internal/model"

// Render formats the caption for a forwarded item: "author: text".
func Render(it model.Item) string {
	if it.Author == "" {
		return it.Text
	}
	return it.Author + ": " + it.Text
}

// SendItem routes an item to the right send method for its media count.
// The scheduler only forwards media-bearing items; the text branch keeps
// SendItem total for callers that render previews.
func SendItem(s Sink, chatID int64, it model.Item) error {
	caption := Render(it)
	switch len(it.Media) {
	case 0:
		return s.SendText(chatID, caption)
	case 1:
		return s.SendPhoto(chatID, it.Media[0], caption)
	default:
		return s.SendMediaGroup(chatID, it.Media, caption)
	}
}
