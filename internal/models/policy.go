package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ChatPolicy is the per-chat content policy.
// A row is created with the defaults from internal/config the first time a chat is seen.
type ChatPolicy struct {
	// ChatID is the Telegram chat identifier.
	ChatID int64 `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	// BlockLinks deletes messages containing http(s) URLs.
	BlockLinks bool `gorm:"not null" json:"block_links"`
	// BlockInvites deletes messages with t.me links, @mentions or joinchat invites.
	BlockInvites bool `gorm:"not null" json:"block_invites"`
	// AntiSpam is stored for the settings UI; no filter reads it yet.
	AntiSpam bool `gorm:"not null" json:"anti_spam"`
	// CapsFilter deletes messages written mostly in capital letters.
	CapsFilter bool `gorm:"not null" json:"caps_filter"`
	// BannedWords are matched as case-insensitive substrings. NULL reads as empty.
	BannedWords WordList `json:"banned_words"`
	// Language selects the reply catalog; empty means the server default.
	Language  string    `gorm:"type:text" json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WordList is stored as a Postgres text[] column, or as its array literal on other dialects.
type WordList []string

func (w WordList) Value() (driver.Value, error) {
	return pq.StringArray(w).Value()
}

func (w *WordList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*w = WordList(arr)
	return nil
}

func (WordList) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect.
func (WordList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether word is already in the list, ignoring case.
func (w WordList) Contains(word string) bool {
	for _, existing := range w {
		if strings.EqualFold(existing, word) {
			return true
		}
	}
	return false
}
