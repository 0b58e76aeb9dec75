package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Poller is the long-polling side of *tgbotapi.BotAPI.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Run is the main loop for receiving Telegram updates by long polling.
// It returns when ctx is cancelled or the update channel closes.
func (s *BotService) Run(ctx context.Context, poller Poller) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := poller.GetUpdatesChan(u)
	defer poller.StopReceivingUpdates()

	s.logger.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := s.HandleUpdate(ctx, update); err != nil {
				s.logger.Error("failed to handle update", zap.Error(err))
			}
		}
	}
}
