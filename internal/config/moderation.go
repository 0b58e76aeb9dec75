package config

import "time"

const (
	// Sanctions
	MuteDuration  = 60 * time.Minute
	WarningWindow = 24 * time.Hour
	WarningLimit  = 3

	// Caps filter
	CapsRatioThreshold = 0.70
	CapsMinLength      = 10

	// Policy defaults for a chat seen for the first time
	DefaultBlockLinks   = true
	DefaultBlockInvites = true
	DefaultAntiSpam     = true
	DefaultCapsFilter   = false

	DefaultLanguage = "en"

	// Telegram webhook retries are de-duplicated for this long
	UpdateDedupTTL = 24 * time.Hour
)
