package storage

import (
	"context"
	"errors"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPolicyNotFound    = errors.New("chat policy not found")
	ErrModeratorNotFound = errors.New("moderator not found")
)

// Storage is the persistent state of the bot. The first group of methods is
// what message processing needs; the rest serve the admin CLI.
type Storage interface {
	EnsurePolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error)
	GetRole(ctx context.Context, chatID, userID int64) (models.Role, error)
	UpsertBan(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) error
	UpsertMute(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64, until time.Time) error
	AppendWarning(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) (int64, error)
	AppendAuditLog(ctx context.Context, action *models.ModerationAction) error
	CountAggregates(ctx context.Context, chatID int64) (models.Aggregates, error)
	ActiveMute(ctx context.Context, chatID, userID int64) (*models.Mute, error)

	ClaimUpdate(ctx context.Context, updateID int) (bool, error)
	ReleaseUpdate(ctx context.Context, updateID int) error

	GetPolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error)
	SavePolicy(ctx context.Context, policy *models.ChatPolicy) error
	AddBannedWord(ctx context.Context, chatID int64, word string) (bool, error)
	RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error)
	GrantRole(ctx context.Context, chatID int64, user models.UserRef, role models.Role) error
	RevokeRole(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) (bool, error)
	Unmute(ctx context.Context, chatID, userID int64) (bool, error)
	Migrate(ctx context.Context) error
}

var _ Storage = (*Service)(nil)

// Service implements Storage on top of gorm. Redis is optional; without it
// policies are read from the database every time and updates are never de-duplicated.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	logger   *zap.Logger
	retry    config.RetryConfig
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRetry bounds how often transient database faults are retried.
func WithRetry(cfg config.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithPolicyCacheTTL sets how long a policy stays in Redis. Zero disables the cache.
func WithPolicyCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, opts ...Option) *Service {
	s := &Service{
		DB:       db,
		Redis:    rdb,
		logger:   zap.NewNop(),
		retry:    config.RetryConfig{MaxAttempts: 3, MaxElapsed: 5 * time.Second},
		cacheTTL: 5 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the tables of every model.
func (s *Service) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

// utcNow keeps stored timestamps comparable across dialects.
func (s *Service) utcNow() time.Time {
	return s.now().UTC()
}
