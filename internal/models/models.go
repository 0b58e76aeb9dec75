// Package models holds the gorm models persisted by the moderation bot.
package models

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&ChatPolicy{},
		&Moderator{},
		&Ban{},
		&Mute{},
		&Warning{},
		&ModerationAction{},
	}
}
