// Package tgui builds small pieces of Telegram inline UI.
package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Button is one inline keyboard entry carrying an opaque callback tag
// like "reaction:like" or "cmd:sendnow".
type Button struct {
	Text string
	Data string
}

// InlineKeyboard lays buttons out as rows of Telegram inline markup.
func InlineKeyboard(rows ...[]Button) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	out := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		out = append(out, btns)
	}
	rm.InlineKeyboard = out
	return rm
}

// ReactionKeyboard is the row attached to every cheer photo: a like
// button and a "fetch a new photo" button.
func ReactionKeyboard(likeTag, newPhotoTag string) *tele.ReplyMarkup {
	return InlineKeyboard([]Button{
		{Text: "❤️", Data: likeTag},
		{Text: "🔄", Data: newPhotoTag},
	})
}
