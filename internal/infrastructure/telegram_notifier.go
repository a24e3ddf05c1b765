package infrastructure

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier alerts the operator channel when a conversation asks for a
// human. Degrades to a no-op when the token is missing or invalid.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	if token == "" || chatID == 0 {
		return &TelegramNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("[NOTIFY] telegram disabled: %v", err)
		return &TelegramNotifier{}
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) NotifyHandoff(agentName, customerPhone, reason string, position int) {
	if n.bot == nil {
		return
	}
	text := fmt.Sprintf("🙋 Handoff requested\nAgent: %s\nCustomer: %s\nQueue position: %d", agentName, customerPhone, position)
	if reason != "" {
		text += "\nReason: " + reason
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("[NOTIFY] telegram send failed: %v", err)
	}
}
