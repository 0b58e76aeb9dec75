package moderation

import (
	"context"
	"time"

	"modguard/backend/internal/models"
)

// Ledger is the storage the engine reads policy and roles from and records sanctions in.
// Every method must be atomic on its own; the engine holds nothing between calls.
type Ledger interface {
	// EnsurePolicy inserts the default policy for chatID if absent and returns the stored one.
	EnsurePolicy(ctx context.Context, chatID int64) (*models.ChatPolicy, error)
	// GetRole returns models.RoleNone when the user has no moderator record.
	GetRole(ctx context.Context, chatID, userID int64) (models.Role, error)
	UpsertBan(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) error
	UpsertMute(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64, until time.Time) error
	// AppendWarning returns the number of warnings for the user within
	// config.WarningWindow, including the one just appended.
	AppendWarning(ctx context.Context, chatID int64, target models.UserRef, reason string, byUserID int64) (int64, error)
	AppendAuditLog(ctx context.Context, action *models.ModerationAction) error
	CountAggregates(ctx context.Context, chatID int64) (models.Aggregates, error)
}
