package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/core-coin/offramp/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	cancel context.CancelFunc
}

// NewTelegramNotificator starts a bot that sends operator alerts. Messaging the bot
// /start replies with the chat id to put in TELEGRAM_CHAT_ID.
func NewTelegramNotificator(logger *logger.Logger, token string) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go b.Start(ctx)
	provider.bot = b
	provider.cancel = cancel

	return provider, nil
}

func (t *TelegramNotificator) SendNotification(chatId, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatId,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send notification", "chat_id", chatId, "error", err)
	}
}

// Stop stops polling for updates
func (t *TelegramNotificator) Stop() {
	t.cancel()
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil {
		return
	}
	user := update.Message.From
	if user == nil {
		t.logger.Error("User is nil")
		return
	}
	t.logger.Debug("Telegram update", "username", user.Username, "text", update.Message.Text)

	if update.Message.Text == "/start" {
		chatID := fmt.Sprint(update.Message.Chat.ID)
		t.logger.Info("Operator chat registered", "username", user.Username, "chat_id", chatID)
		t.SendNotification(chatID, "Offramp alerts bot. Set TELEGRAM_CHAT_ID="+chatID+" to receive alerts in this chat.")
	}
}
