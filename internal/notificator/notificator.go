package notificator

import (
	"runtime/debug"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendNotification(chatID, message string)
}

// Notificator alerts operators about withdrawals and failed transfers. Without a
// sender or chat id, alerts are only logged.
type Notificator struct {
	logger *logger.Logger
	chatID string

	TelegramNotificator Sender
}

func NewNotificator(logger *logger.Logger, chatID string, telNotif Sender) *Notificator {
	return &Notificator{logger: logger, chatID: chatID, TelegramNotificator: telNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) SendNotification(notification *models.Notification) {
	n.logger.Info("Operator alert",
		"kind", notification.Kind,
		"wallet", notification.Wallet,
		"chain_id", notification.ChainID,
		"tx", notification.TxHash,
		"withdrawal_id", notification.WithdrawalID,
		"error", notification.Error,
	)

	if n.TelegramNotificator == nil || n.chatID == "" {
		return
	}
	message := notification.String()
	n.safeCall(func() { n.TelegramNotificator.SendNotification(n.chatID, message) }, "telegramNotification")
}

var _ models.NotificationService = (*Notificator)(nil)
