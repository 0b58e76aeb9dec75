package storage

import (
	"context"
	"errors"
	"fmt"

	"modguard/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetRole returns RoleNone when the user holds no role in the chat.
func (s *Service) GetRole(ctx context.Context, chatID, userID int64) (models.Role, error) {
	var mod models.Moderator
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			First(&mod).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, fmt.Errorf("get role: %w", err)
	}
	return mod.Role, nil
}

// GrantRole assigns role to user, replacing any role the user already had in the chat.
func (s *Service) GrantRole(ctx context.Context, chatID int64, user models.UserRef, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("grant role: invalid role %q", role)
	}
	mod := models.Moderator{
		ChatID:   chatID,
		UserID:   user.ID,
		Role:     role,
		Username: user.Username,
	}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   chatUserColumns,
			DoUpdates: clause.AssignmentColumns([]string{"role", "username", "updated_at"}),
		}).Create(&mod).Error
	})
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// RevokeRole removes the user's role. ErrModeratorNotFound means there was nothing to revoke.
func (s *Service) RevokeRole(ctx context.Context, chatID, userID int64) error {
	var affected int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		res := s.DB.WithContext(ctx).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Delete(&models.Moderator{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if affected == 0 {
		return ErrModeratorNotFound
	}
	return nil
}
