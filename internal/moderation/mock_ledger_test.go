package moderation_test

import (
	"context"
	"time"

	"modguard/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) EnsurePolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatPolicy), args.Error(1)
}

func (m *MockLedger) GetRole(ctx context.Context, chatID, userID int64) (models.Role, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *MockLedger) UpsertBan(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) error {
	args := m.Called(ctx, chatID, target, reason, byUserID)
	return args.Error(0)
}

func (m *MockLedger) UpsertMute(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64, until time.Time) error {
	args := m.Called(ctx, chatID, target, reason, byUserID, until)
	return args.Error(0)
}

func (m *MockLedger) AppendWarning(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) (int64, error) {
	args := m.Called(ctx, chatID, target, reason, byUserID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) AppendAuditLog(ctx context.Context, action *models.ModerationAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockLedger) CountAggregates(ctx context.Context, chatID int64) (models.Aggregates, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.Aggregates), args.Error(1)
}
