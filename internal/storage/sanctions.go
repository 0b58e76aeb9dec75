package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var chatUserColumns = []clause.Column{{Name: "chat_id"}, {Name: "user_id"}}

// UpsertBan records a ban. A repeated ban of the same user replaces reason, moderator and time.
func (s *Service) UpsertBan(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) error {
	ban := models.Ban{
		ChatID:   chatID,
		UserID:   target.ID,
		Username: target.Username,
		Reason:   reason,
		BannedBy: byUserID,
		BannedAt: s.utcNow(),
	}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   chatUserColumns,
			DoUpdates: clause.AssignmentColumns([]string{"username", "reason", "banned_by", "banned_at"}),
		}).Create(&ban).Error
	})
	if err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}
	return nil
}

// UpsertMute records a mute until the given time, replacing an earlier one.
func (s *Service) UpsertMute(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64, until time.Time) error {
	mute := models.Mute{
		ChatID:     chatID,
		UserID:     target.ID,
		Username:   target.Username,
		Reason:     reason,
		MutedBy:    byUserID,
		MutedAt:    s.utcNow(),
		MutedUntil: until.UTC(),
	}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   chatUserColumns,
			DoUpdates: clause.AssignmentColumns([]string{"username", "reason", "muted_by", "muted_at", "muted_until"}),
		}).Create(&mute).Error
	})
	if err != nil {
		return fmt.Errorf("upsert mute: %w", err)
	}
	return nil
}

// AppendWarning stores a warning and returns how many warnings the user has
// received in the chat within the warning window, the new one included.
func (s *Service) AppendWarning(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) (int64, error) {
	now := s.utcNow()
	cutoff := now.Add(-config.WarningWindow)

	var count int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			warning := models.Warning{
				ChatID:   chatID,
				UserID:   target.ID,
				Username: target.Username,
				Reason:   reason,
				WarnedBy: byUserID,
				WarnedAt: now,
			}
			if err := tx.Create(&warning).Error; err != nil {
				return err
			}
			return tx.Model(&models.Warning{}).
				Where("chat_id = ? AND user_id = ? AND warned_at > ?", chatID, target.ID, cutoff).
				Count(&count).Error
		})
	})
	if err != nil {
		return 0, fmt.Errorf("append warning: %w", err)
	}
	return count, nil
}

func (s *Service) AppendAuditLog(ctx context.Context, action *models.ModerationAction) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Create(action).Error
	})
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// CountAggregates returns all-time totals for the chat.
func (s *Service) CountAggregates(ctx context.Context, chatID int64) (models.Aggregates, error) {
	var agg models.Aggregates
	err := s.withRetry(ctx, func(ctx context.Context) error {
		db := s.DB.WithContext(ctx)
		if err := db.Model(&models.Ban{}).Where("chat_id = ?", chatID).Count(&agg.Bans).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Mute{}).Where("chat_id = ?", chatID).Count(&agg.Mutes).Error; err != nil {
			return err
		}
		return db.Model(&models.Warning{}).Where("chat_id = ?", chatID).Count(&agg.Warnings).Error
	})
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("count aggregates: %w", err)
	}
	return agg, nil
}

// ActiveMute returns the user's mute if it has not expired yet, nil otherwise.
func (s *Service) ActiveMute(ctx context.Context, chatID, userID int64) (*models.Mute, error) {
	var mute models.Mute
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			First(&mute).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active mute: %w", err)
	}
	if !mute.Active(s.utcNow()) {
		return nil, nil
	}
	return &mute, nil
}

// Unban deletes the ban row. It returns false when the user was not banned.
func (s *Service) Unban(ctx context.Context, chatID, userID int64) (bool, error) {
	return s.deleteChatUser(ctx, &models.Ban{}, chatID, userID)
}

// Unmute deletes the mute row. It returns false when there was none.
func (s *Service) Unmute(ctx context.Context, chatID, userID int64) (bool, error) {
	return s.deleteChatUser(ctx, &models.Mute{}, chatID, userID)
}

func (s *Service) deleteChatUser(ctx context.Context, model any, chatID, userID int64) (bool, error) {
	var affected int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		res := s.DB.WithContext(ctx).Where("chat_id = ? AND user_id = ?", chatID, userID).Delete(model)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("delete %T: %w", model, err)
	}
	return affected > 0, nil
}
