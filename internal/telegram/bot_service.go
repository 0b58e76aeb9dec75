// Package telegram connects the moderation engine to the Telegram Bot API.
// Updates arrive either through the webhook handler or through long polling;
// both paths end in BotService.HandleUpdate.
package telegram

import (
	"context"
	"fmt"
	"time"

	"modguard/backend/internal/metrics"
	"modguard/backend/internal/moderation"
	"modguard/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const releaseTimeout = 5 * time.Second

// Processor turns one message into one decision.
type Processor interface {
	Process(ctx context.Context, msg moderation.Message) (moderation.Decision, error)
}

// UpdateClaimer remembers which updates were already handled, so that
// Telegram's redeliveries do not sanction a user twice.
type UpdateClaimer interface {
	ClaimUpdate(ctx context.Context, updateID int) (bool, error)
	ReleaseUpdate(ctx context.Context, updateID int) error
}

// BotService receives Telegram updates, asks the engine what to do and performs it.
type BotService struct {
	Engine  Processor
	Claimer UpdateClaimer
	Sender  Sender
	Metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(engine Processor, claimer UpdateClaimer, sender Sender, m *metrics.Metrics, logger *zap.Logger) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotService{
		Engine:  engine,
		Claimer: claimer,
		Sender:  sender,
		Metrics: m,
		logger:  logger,
	}
}

func userRef(u *tgbotapi.User) models.UserRef {
	return models.UserRef{ID: u.ID, Username: u.UserName}
}

// toMessage converts a Telegram message. The caller guarantees msg.From is set.
func toMessage(chatID int64, msg *tgbotapi.Message) moderation.Message {
	m := moderation.Message{
		ChatID:    chatID,
		MessageID: msg.MessageID,
		From:      userRef(msg.From),
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target := userRef(msg.ReplyToMessage.From)
		m.ReplyTo = &target
	}
	return m
}

// HandleUpdate processes one update. Updates without a message, chat or sender are ignored.
// A returned error means the update was not handled and may be redelivered.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	chat := update.FromChat()
	if msg == nil || msg.From == nil || chat == nil || chat.ID == 0 {
		s.Metrics.Update("ignored")
		return nil
	}

	if s.Claimer != nil {
		claimed, err := s.Claimer.ClaimUpdate(ctx, update.UpdateID)
		if err != nil {
			// moderation continues without de-duplication
			s.logger.Warn("update de-duplication unavailable", zap.Int("update_id", update.UpdateID), zap.Error(err))
			claimed = true
		}
		if !claimed {
			s.logger.Debug("duplicate update skipped", zap.Int("update_id", update.UpdateID))
			s.Metrics.Update("duplicate")
			return nil
		}
	}

	if err := s.process(ctx, toMessage(chat.ID, msg)); err != nil {
		// ctx may already be cancelled when the webhook caller hung up
		s.release(context.WithoutCancel(ctx), update.UpdateID)
		s.Metrics.Update("failed")
		return fmt.Errorf("update %d: %w", update.UpdateID, err)
	}

	s.Metrics.Update("processed")
	return nil
}

func (s *BotService) process(ctx context.Context, msg moderation.Message) error {
	decision, err := s.Engine.Process(ctx, msg)
	if err != nil {
		return err
	}
	return Dispatch(s.Sender, decision)
}

func (s *BotService) release(ctx context.Context, updateID int) {
	if s.Claimer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, releaseTimeout)
	defer cancel()
	if err := s.Claimer.ReleaseUpdate(ctx, updateID); err != nil {
		s.logger.Warn("failed to release update claim", zap.Int("update_id", updateID), zap.Error(err))
	}
}
