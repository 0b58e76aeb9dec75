package telegram_test

import (
	"context"
	"encoding/json"
	"testing"

	"modguard/backend/internal/moderation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, msg moderation.Message) (moderation.Decision, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(moderation.Decision), args.Error(1)
}

type MockClaimer struct {
	mock.Mock
}

func (m *MockClaimer) ClaimUpdate(ctx context.Context, updateID int) (bool, error) {
	args := m.Called(ctx, updateID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClaimer) ReleaseUpdate(ctx context.Context, updateID int) error {
	args := m.Called(ctx, updateID)
	return args.Error(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func isReply(chatID int64, text string) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && msg.Text == text
	})
}

func isDelete(chatID int64, messageID int) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		del, ok := c.(tgbotapi.DeleteMessageConfig)
		return ok && del.ChatID == chatID && del.MessageID == messageID
	})
}

func parseUpdate(t *testing.T, raw string) tgbotapi.Update {
	t.Helper()
	var u tgbotapi.Update
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return u
}
