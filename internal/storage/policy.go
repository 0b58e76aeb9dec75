package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func defaultPolicy(chatID int64) models.ChatPolicy {
	return models.ChatPolicy{
		ChatID:       chatID,
		BlockLinks:   config.DefaultBlockLinks,
		BlockInvites: config.DefaultBlockInvites,
		AntiSpam:     config.DefaultAntiSpam,
		CapsFilter:   config.DefaultCapsFilter,
	}
}

// EnsurePolicy returns the policy of chatID, creating it with defaults on first sight.
// Concurrent first sightings converge on one row.
func (s *Service) EnsurePolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error) {
	if policy, ok := s.cachedPolicy(ctx, chatID); ok {
		return policy, nil
	}

	var policy models.ChatPolicy
	err := s.withRetry(ctx, func(ctx context.Context) error {
		defaults := defaultPolicy(chatID)
		if err := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&defaults).Error; err != nil {
			return err
		}
		return s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&policy).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure policy: %w", err)
	}

	s.cachePolicy(ctx, &policy)
	return &policy, nil
}

// GetPolicy returns the stored policy without creating one.
func (s *Service) GetPolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error) {
	var policy models.ChatPolicy
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&policy).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &policy, nil
}

// SavePolicy writes every column of policy and drops the cached copy.
func (s *Service) SavePolicy(ctx context.Context, policy *models.ChatPolicy) error {
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Save(policy).Error
	}); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	s.InvalidatePolicy(ctx, policy.ChatID)
	return nil
}

// AddBannedWord stores word lower-cased. It returns false when the word was already present.
func (s *Service) AddBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, errors.New("banned word is empty")
	}
	return s.updateWords(ctx, chatID, func(words models.WordList) (models.WordList, bool) {
		if words.Contains(word) {
			return words, false
		}
		return append(words, word), true
	})
}

// RemoveBannedWord returns false when the word was not in the list.
func (s *Service) RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	word = strings.TrimSpace(word)
	return s.updateWords(ctx, chatID, func(words models.WordList) (models.WordList, bool) {
		kept := make(models.WordList, 0, len(words))
		for _, w := range words {
			if !strings.EqualFold(w, word) {
				kept = append(kept, w)
			}
		}
		return kept, len(kept) != len(words)
	})
}

func (s *Service) updateWords(ctx context.Context, chatID int64, edit func(models.WordList) (models.WordList, bool)) (bool, error) {
	if _, err := s.EnsurePolicy(ctx, chatID); err != nil {
		return false, err
	}

	var changed bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var policy models.ChatPolicy
			if err := tx.Where("chat_id = ?", chatID).First(&policy).Error; err != nil {
				return err
			}

			var words models.WordList
			words, changed = edit(policy.BannedWords)
			if !changed {
				return nil
			}
			return tx.Model(&policy).Update("banned_words", words).Error
		})
	})
	if err != nil {
		return false, fmt.Errorf("update banned words: %w", err)
	}

	if changed {
		s.InvalidatePolicy(ctx, chatID)
	}
	return changed, nil
}
