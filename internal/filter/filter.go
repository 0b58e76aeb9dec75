// Package filter classifies message text against a chat's content policy.
//
// Each rule is toggled independently by the policy and contributes at most one tag.
// The predicates are compatibility-sensitive: chats tuned their settings against
// exactly these heuristics, so changes here change which messages get deleted.
package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"
)

// Tag identifies the policy rule a message violated.
type Tag string

const (
	TagLinks       Tag = "links"
	TagInvites     Tag = "invites"
	TagCaps        Tag = "caps"
	TagBannedWords Tag = "banned_words"
)

var (
	linkPattern = regexp.MustCompile(`(?i)https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

	// Checked in order; the first match wins.
	invitePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)t\.me/`),
		regexp.MustCompile(`(?i)@[\p{L}\p{N}_]+`),
		regexp.MustCompile(`(?i)telegram\.me/`),
		regexp.MustCompile(`(?i)joinchat/`),
	}
)

// Violations is the set of tags raised for one message, in rule order.
type Violations []Tag

// Has reports whether tag is in the set.
func (v Violations) Has(tag Tag) bool {
	for _, t := range v {
		if t == tag {
			return true
		}
	}
	return false
}

// Empty reports whether no rule fired.
func (v Violations) Empty() bool {
	return len(v) == 0
}

// Evaluate runs every enabled rule of policy against text.
func Evaluate(text string, policy models.ChatPolicy) Violations {
	var v Violations

	if policy.BlockLinks && ContainsLink(text) {
		v = append(v, TagLinks)
	}
	if policy.BlockInvites && ContainsInvite(text) {
		v = append(v, TagInvites)
	}
	if policy.CapsFilter && IsShouting(text) {
		v = append(v, TagCaps)
	}
	if len(policy.BannedWords) > 0 && ContainsBannedWord(text, policy.BannedWords) {
		v = append(v, TagBannedWords)
	}

	return v
}

// ContainsLink reports whether text contains an http:// or https:// URL.
func ContainsLink(text string) bool {
	return linkPattern.MatchString(text)
}

// ContainsInvite reports whether text contains a t.me or telegram.me link,
// a joinchat invite or an @mention.
func ContainsInvite(text string) bool {
	for _, p := range invitePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsShouting reports whether more than 70% of the characters of a text longer
// than 10 characters are uppercase letters.
func IsShouting(text string) bool {
	length := utf8.RuneCountInString(text)

	upper := 0
	for _, r := range text {
		if isUpper(r) {
			upper++
		}
	}

	ratio := float64(upper) / float64(max(length, 1))
	return ratio > config.CapsRatioThreshold && length > config.CapsMinLength
}

// isUpper also counts Other_Uppercase runes such as Ⓐ and Ⅷ.
func isUpper(r rune) bool {
	return unicode.IsUpper(r) || unicode.Is(unicode.Other_Uppercase, r)
}

// ContainsBannedWord reports whether text contains any of words, ignoring case.
// Blank entries are ignored.
func ContainsBannedWord(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
