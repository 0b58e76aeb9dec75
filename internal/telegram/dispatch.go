package telegram

import (
	"fmt"

	"modguard/backend/internal/moderation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used to act on decisions.
type Sender interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dispatch performs the Bot API call for d. Noop decisions make no call.
func Dispatch(sender Sender, d moderation.Decision) error {
	var req tgbotapi.Chattable

	switch d.Kind {
	case moderation.DecisionNoop:
		return nil
	case moderation.DecisionReply:
		req = tgbotapi.NewMessage(d.ChatID, d.Text)
	case moderation.DecisionDelete:
		req = tgbotapi.NewDeleteMessage(d.ChatID, d.MessageID)
	default:
		return fmt.Errorf("unknown decision kind %d", d.Kind)
	}

	if _, err := sender.Request(req); err != nil {
		return fmt.Errorf("%s in chat %d: %w", d.Kind, d.ChatID, err)
	}
	return nil
}
