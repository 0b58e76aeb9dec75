package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func policyKey(chatID int64) string {
	return "policy:" + strconv.FormatInt(chatID, 10)
}

func updateKey(updateID int) string {
	return "update:" + strconv.Itoa(updateID)
}

// cachedPolicy reads a policy from Redis. Any cache fault counts as a miss.
func (s *Service) cachedPolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, bool) {
	if s.Redis == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	raw, err := s.Redis.Get(ctx, policyKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("policy cache read failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, false
	}

	var policy models.ChatPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		s.logger.Warn("corrupt cached policy", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, false
	}
	return &policy, true
}

func (s *Service) cachePolicy(ctx context.Context, policy *models.ChatPolicy) {
	if s.Redis == nil || s.cacheTTL <= 0 {
		return
	}

	raw, err := json.Marshal(policy)
	if err != nil {
		s.logger.Warn("encode policy for cache", zap.Int64("chat_id", policy.ChatID), zap.Error(err))
		return
	}
	if err := s.Redis.Set(ctx, policyKey(policy.ChatID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("policy cache write failed", zap.Int64("chat_id", policy.ChatID), zap.Error(err))
	}
}

// InvalidatePolicy drops the cached copy so the next read goes to the database.
func (s *Service) InvalidatePolicy(ctx context.Context, chatID int64) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, policyKey(chatID)).Err(); err != nil {
		s.logger.Warn("policy cache invalidation failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// ClaimUpdate marks a Telegram update as taken. It returns false when another
// delivery of the same update was claimed first. Without Redis every claim succeeds.
func (s *Service) ClaimUpdate(ctx context.Context, updateID int) (bool, error) {
	if s.Redis == nil {
		return true, nil
	}
	ok, err := s.Redis.SetNX(ctx, updateKey(updateID), 1, config.UpdateDedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim update %d: %w", updateID, err)
	}
	return ok, nil
}

// ReleaseUpdate undoes ClaimUpdate so Telegram's redelivery is processed.
func (s *Service) ReleaseUpdate(ctx context.Context, updateID int) error {
	if s.Redis == nil {
		return nil
	}
	if err := s.Redis.Del(ctx, updateKey(updateID)).Err(); err != nil {
		return fmt.Errorf("release update %d: %w", updateID, err)
	}
	return nil
}
