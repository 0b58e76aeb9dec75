package models

// UnknownUsername is shown and stored for Telegram users without a public username.
const UnknownUsername = "unknown"

// UserRef identifies a Telegram user.
type UserRef struct {
	ID       int64
	Username string
}

// DisplayName returns the username, or UnknownUsername when it is empty.
func (u UserRef) DisplayName() string {
	if u.Username == "" {
		return UnknownUsername
	}
	return u.Username
}
