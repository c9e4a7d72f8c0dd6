// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramBotAdapter delivers direct messages. Balans AI user ids are Telegram chat ids.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
