package telegram

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// sendMessage sends an HTML message to a chat
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	msg, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
	return msg, err
}

// deleteMessage deletes a message
func (b *Bot) deleteMessage(ctx context.Context, chatID int64, msgID int) error {
	_, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: msgID,
	})
	return err
}

// requirePrivateChat rejects credential-bearing commands outside of a
// one-on-one chat.
func (b *Bot) requirePrivateChat(ctx context.Context, msg *models.Message) bool {
	if msg.Chat.Type != "private" {
		b.sendMessage(ctx, msg.Chat.ID, "This command works in a private chat only.")
		return false
	}
	return true
}

// parseCount parses an optional positive count argument, falling back
// to def when the argument is absent.
func parseCount(args []string, index, def int) (int, bool) {
	if len(args) <= index {
		return def, true
	}
	n, err := strconv.Atoi(args[index])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseID parses a required account id argument.
func parseID(args []string, index int) (int64, bool) {
	if len(args) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(args[index], 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
