package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/freightbot/dialog"
	"github.com/iabalyuk/freightbot/metrics"
)

var _ dialog.Transport = (*Bot)(nil)

// Send delivers p and returns the new message id.
func (b *Bot) Send(_ context.Context, chatID int64, p dialog.Prompt) (int, error) {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	if p.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if markup := replyMarkup(p); markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		metrics.RecordTransportError("send")
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text and inline keyboard of messageID.
func (b *Bot) Edit(_ context.Context, chatID int64, messageID int, p dialog.Prompt) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, p.Text)
	if p.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if len(p.Inline) > 0 {
		kb := inlineKeyboard(p.Inline)
		edit.ReplyMarkup = &kb
	}
	if _, err := b.api.Send(edit); err != nil {
		// Re-rendering the same calendar page is not an error for us.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		metrics.RecordTransportError("edit")
		return fmt.Errorf("failed to edit message %d: %w", messageID, err)
	}
	return nil
}

// Retract deletes messageID.
func (b *Bot) Retract(_ context.Context, chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		metrics.RecordTransportError("delete")
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// answerCallbackQuery sends an answer to a callback query.
func (b *Bot) answerCallbackQuery(queryID string, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.log.Debug().Err(err).Str("query", queryID).Msg("failed to answer callback query")
	}
}

// replyMarkup maps the keyboard of a prompt; inline keyboards win over
// reply keyboards.
func replyMarkup(p dialog.Prompt) any {
	switch {
	case len(p.Inline) > 0:
		return inlineKeyboard(p.Inline)
	case p.Contact != "":
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(p.Contact)))
		kb.OneTimeKeyboard = true
		return kb
	case len(p.Replies) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(p.Replies))
		for _, r := range p.Replies {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, text := range r {
				row = append(row, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, row)
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		return kb
	}

	switch p.Menu {
	case dialog.MenuMain:
		return mainMenu()
	case dialog.MenuAdmin:
		return adminMenu()
	case dialog.MenuRemove:
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

func inlineKeyboard(grid [][]dialog.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(grid))
	for _, r := range grid {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, btn := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
