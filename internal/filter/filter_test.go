package filter_test

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"modguard/backend/internal/filter"
	"modguard/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func allRules() models.ChatPolicy {
	return models.ChatPolicy{
		BlockLinks:   true,
		BlockInvites: true,
		CapsFilter:   true,
		BannedWords:  []string{"casino"},
	}
}

func TestEvaluate(t *testing.T) {
	defaults := models.ChatPolicy{BlockLinks: true, BlockInvites: true, AntiSpam: true}

	tests := []struct {
		name   string
		text   string
		policy models.ChatPolicy
		want   filter.Violations
	}{
		{"empty text", "", allRules(), nil},
		{"plain text", "good morning everyone", allRules(), nil},
		{"link", "check http://example.com", defaults, filter.Violations{filter.TagLinks}},
		{"link disabled", "check http://example.com", models.ChatPolicy{}, nil},
		{"invite", "join t.me/somechannel", defaults, filter.Violations{filter.TagInvites}},
		{"mention", "ask @someone", defaults, filter.Violations{filter.TagInvites}},
		{"caps disabled", "HELLO THIS IS FINE", defaults, nil},
		{"caps enabled", "HELLO THIS IS FINE", allRules(), filter.Violations{filter.TagCaps}},
		{"banned word", "best Casino in town", allRules(), filter.Violations{filter.TagBannedWords}},
		{
			"link and invite together",
			"https://t.me/joinchat/abc",
			defaults,
			filter.Violations{filter.TagLinks, filter.TagInvites},
		},
		{
			"every rule",
			"FREE CASINO HTTPS://WIN.EXAMPLE @WINNER",
			allRules(),
			filter.Violations{filter.TagLinks, filter.TagInvites, filter.TagCaps, filter.TagBannedWords},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Evaluate(tt.text, tt.policy))
		})
	}
}

func TestContainsLink(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"http://example.com", true},
		{"see https://example.com/path?q=1", true},
		{"HTTPS://EXAMPLE.COM", true},
		{"http://%41%42", true},
		{"https://", false},
		{"example.com", false},
		{"ftp://example.com", false},
		{"www.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.ContainsLink(tt.text))
		})
	}
}

func TestContainsLink_NeverWithoutScheme(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcHTTPs/.@ -_%0123456789!*(),$&+ЖЯ")

	for i := 0; i < 2000; i++ {
		n := rng.Intn(40)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		text := sb.String()
		// no ':' in the alphabet, so no scheme separator can appear
		assert.False(t, filter.ContainsLink(text), text)
		assert.False(t, filter.Evaluate(text, allRules()).Has(filter.TagLinks), text)
	}
}

func TestContainsInvite(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"t.me/channel", true},
		{"T.ME/Channel", true},
		{"telegram.me/channel", true},
		{"https://example.com/joinchat/AAAA", true},
		{"hi @bob", true},
		{"привет @друг", true},
		{"mail me at a@b", true},
		{"lonely @ sign", false},
		{"tme channel", false},
		{"nothing to see", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.ContainsInvite(tt.text))
		})
	}
}

func TestIsShouting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"exactly ten upper", "HELLOWORLD", false},
		{"eleven mostly upper", "HELLO WORLD", true},
		{"ratio exactly 0.70", "ABCDEFGHIJKLMNabcdef", false},
		{"ratio 0.75", "ABCDEFGHIJKLMNOabcde", true},
		{"mixed case", "Hello World Again", false},
		{"cyrillic", "ПРИВЕТ ВСЕМ ДРУЗЬЯ", true},
		{"roman numerals", "ⅧⅧⅧⅧⅧⅧⅧⅧⅧⅧⅧⅧ", true},
		{"circled letters", "ⒶⒷⒸⒹⒺⒻⒼⒽⒾⒿⓀ", true},
		{"circled lowercase", "ⓐⓑⓒⓓⓔⓕⓖⓗⓘⓙⓚ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.IsShouting(tt.text))
		})
	}
}

func TestIsShouting_MatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	alphabet := []rune("aBcDEF GHi!Ж")

	for i := 0; i < 2000; i++ {
		n := rng.Intn(25)
		var sb strings.Builder
		upper := 0
		for j := 0; j < n; j++ {
			r := alphabet[rng.Intn(len(alphabet))]
			if unicode.IsUpper(r) {
				upper++
			}
			sb.WriteRune(r)
		}
		text := sb.String()
		length := utf8.RuneCountInString(text)
		want := length > 10 && float64(upper)/float64(length) > 0.70
		assert.Equal(t, want, filter.IsShouting(text), text)
	}
}

func TestContainsBannedWord(t *testing.T) {
	words := []string{"Spam", "  ", "", "скидка"}

	assert.True(t, filter.ContainsBannedWord("SPAMMER here", words))
	assert.True(t, filter.ContainsBannedWord("Большая СКИДКА", words))
	assert.False(t, filter.ContainsBannedWord("clean message", words))
	assert.False(t, filter.ContainsBannedWord("anything", []string{"", " "}))
	assert.False(t, filter.ContainsBannedWord("anything", nil))
}

func TestViolations(t *testing.T) {
	var none filter.Violations
	assert.True(t, none.Empty())
	assert.False(t, none.Has(filter.TagLinks))

	v := filter.Violations{filter.TagCaps}
	assert.False(t, v.Empty())
	assert.True(t, v.Has(filter.TagCaps))
	assert.False(t, v.Has(filter.TagInvites))
}
