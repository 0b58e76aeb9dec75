package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SanctionKind names a moderation action in the audit log.
type SanctionKind string

const (
	SanctionBan  SanctionKind = "ban"
	SanctionMute SanctionKind = "mute"
	SanctionWarn SanctionKind = "warn"
)

// Ban is at most one row per (chat, user); a repeated ban overwrites reason and time.
type Ban struct {
	ID       uint      `gorm:"primaryKey"`
	ChatID   int64     `gorm:"not null;uniqueIndex:idx_ban_chat_user"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_ban_chat_user"`
	Username string    `gorm:"type:text"`
	Reason   string    `gorm:"type:text"`
	BannedBy int64     `gorm:"not null"`
	BannedAt time.Time `gorm:"not null"`
}

// Mute is at most one row per (chat, user); a repeated mute overwrites reason and expiry.
type Mute struct {
	ID         uint      `gorm:"primaryKey"`
	ChatID     int64     `gorm:"not null;uniqueIndex:idx_mute_chat_user"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_mute_chat_user"`
	Username   string    `gorm:"type:text"`
	Reason     string    `gorm:"type:text"`
	MutedBy    int64     `gorm:"not null"`
	MutedAt    time.Time `gorm:"not null"`
	MutedUntil time.Time `gorm:"not null;index"`
}

// Active reports whether the mute is still in force at now.
func (m *Mute) Active(now time.Time) bool {
	return m.MutedUntil.After(now)
}

// Warning rows are append-only.
type Warning struct {
	ID       uint      `gorm:"primaryKey"`
	ChatID   int64     `gorm:"not null;index:idx_warning_chat_user_time"`
	UserID   int64     `gorm:"not null;index:idx_warning_chat_user_time"`
	Username string    `gorm:"type:text"`
	Reason   string    `gorm:"type:text"`
	WarnedBy int64     `gorm:"not null"`
	WarnedAt time.Time `gorm:"not null;index:idx_warning_chat_user_time"`
}

// ModerationAction is an audit log entry written for every issued sanction.
type ModerationAction struct {
	ID                string       `gorm:"primaryKey" json:"id"`
	ChatID            int64        `gorm:"not null;index" json:"chat_id"`
	UserID            int64        `gorm:"not null" json:"user_id"`
	Username          string       `gorm:"type:text" json:"username"`
	ActionType        SanctionKind `gorm:"type:text;not null" json:"action_type"`
	Reason            string       `gorm:"type:text" json:"reason"`
	ModeratorID       int64        `gorm:"not null" json:"moderator_id"`
	ModeratorUsername string       `gorm:"type:text" json:"moderator_username"`
	CreatedAt         time.Time    `json:"created_at"`
}

// BeforeCreate generates the UUID primary key unless one is already set.
func (a *ModerationAction) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}

// Aggregates are the per-chat totals shown by /stats.
type Aggregates struct {
	Bans     int64
	Mutes    int64
	Warnings int64
}
