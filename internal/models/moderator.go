package models

import "time"

// Role is the moderation privilege of a user inside one chat.
type Role string

const (
	// RoleNone is the absence of a Moderator row. It is never stored.
	RoleNone      Role = ""
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r may be stored in the moderators table.
func (r Role) Valid() bool {
	return r == RoleModerator || r == RoleAdmin
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// ParseRole converts user input into a storable Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Moderator grants a role to a user in a chat.
type Moderator struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    int64  `gorm:"not null;uniqueIndex:idx_moderator_chat_user"`
	UserID    int64  `gorm:"not null;uniqueIndex:idx_moderator_chat_user"`
	Role      Role   `gorm:"type:text;not null"`
	Username  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
