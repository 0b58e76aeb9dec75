package storage_test

import (
	"context"
	"testing"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"
	"modguard/backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	chatID  = int64(-1001234)
	otherID = int64(-1009999)
	modID   = int64(7)
)

var (
	t0     = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	target = models.UserRef{ID: 42, Username: "spammer"}
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, rdb *redis.Client, opts ...storage.Option) *storage.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := storage.NewStorageService(db, rdb, opts...)
	require.NoError(t, svc.Migrate(context.Background()))
	return svc
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestEnsurePolicy_CreatesDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	p, err := svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, chatID, p.ChatID)
	assert.Equal(t, config.DefaultBlockLinks, p.BlockLinks)
	assert.Equal(t, config.DefaultBlockInvites, p.BlockInvites)
	assert.Equal(t, config.DefaultAntiSpam, p.AntiSpam)
	assert.Equal(t, config.DefaultCapsFilter, p.CapsFilter)
	assert.Empty(t, p.BannedWords)

	_, err = svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)

	var n int64
	require.NoError(t, svc.DB.Model(&models.ChatPolicy{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestEnsurePolicy_KeepsStoredPolicy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	require.NoError(t, svc.SavePolicy(ctx, &models.ChatPolicy{
		ChatID:      chatID,
		CapsFilter:  true,
		BannedWords: models.WordList{"casino"},
		Language:    "ru",
	}))

	p, err := svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, p.BlockLinks)
	assert.True(t, p.CapsFilter)
	assert.Equal(t, models.WordList{"casino"}, p.BannedWords)
	assert.Equal(t, "ru", p.Language)
}

func TestGetPolicy_NotFound(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.GetPolicy(context.Background(), chatID)
	assert.ErrorIs(t, err, storage.ErrPolicyNotFound)
}

func TestBannedWords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	added, err := svc.AddBannedWord(ctx, chatID, "  Casino ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.AddBannedWord(ctx, chatID, "CASINO")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = svc.AddBannedWord(ctx, chatID, "pills")
	require.NoError(t, err)

	_, err = svc.AddBannedWord(ctx, chatID, "   ")
	assert.Error(t, err)

	p, err := svc.GetPolicy(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.WordList{"casino", "pills"}, p.BannedWords)

	removed, err := svc.RemoveBannedWord(ctx, chatID, "Casino")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.RemoveBannedWord(ctx, chatID, "absent")
	require.NoError(t, err)
	assert.False(t, removed)

	p, err = svc.GetPolicy(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.WordList{"pills"}, p.BannedWords)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	role, err := svc.GetRole(ctx, chatID, modID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)

	require.NoError(t, svc.GrantRole(ctx, chatID, models.UserRef{ID: modID, Username: "mod"}, models.RoleModerator))
	role, err = svc.GetRole(ctx, chatID, modID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, role)

	require.NoError(t, svc.GrantRole(ctx, chatID, models.UserRef{ID: modID, Username: "mod"}, models.RoleAdmin))
	role, err = svc.GetRole(ctx, chatID, modID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	// roles are per chat
	role, err = svc.GetRole(ctx, otherID, modID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)

	assert.Error(t, svc.GrantRole(ctx, chatID, models.UserRef{ID: 1}, models.Role("owner")))

	require.NoError(t, svc.RevokeRole(ctx, chatID, modID))
	assert.ErrorIs(t, svc.RevokeRole(ctx, chatID, modID), storage.ErrModeratorNotFound)

	role, err = svc.GetRole(ctx, chatID, modID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)
}

func TestUpsertBan_SecondBanReplacesFirst(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	svc := newTestService(t, nil, storage.WithClock(c.Now))

	require.NoError(t, svc.UpsertBan(ctx, chatID, target, "flood", modID))
	c.now = t0.Add(time.Hour)
	require.NoError(t, svc.UpsertBan(ctx, chatID, target, "spam", modID+1))

	var bans []models.Ban
	require.NoError(t, svc.DB.Where("chat_id = ?", chatID).Find(&bans).Error)
	require.Len(t, bans, 1)
	assert.Equal(t, "spam", bans[0].Reason)
	assert.Equal(t, modID+1, bans[0].BannedBy)
	assert.True(t, bans[0].BannedAt.Equal(t0.Add(time.Hour)))

	agg, err := svc.CountAggregates(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Bans)
}

func TestUpsertMute_AndActiveMute(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	svc := newTestService(t, nil, storage.WithClock(c.Now))

	mute, err := svc.ActiveMute(ctx, chatID, target.ID)
	require.NoError(t, err)
	assert.Nil(t, mute)

	until := t0.Add(config.MuteDuration)
	require.NoError(t, svc.UpsertMute(ctx, chatID, target, "flood", modID, until))

	mute, err = svc.ActiveMute(ctx, chatID, target.ID)
	require.NoError(t, err)
	require.NotNil(t, mute)
	assert.True(t, mute.MutedUntil.Equal(until))
	assert.Equal(t, "flood", mute.Reason)

	c.now = until
	mute, err = svc.ActiveMute(ctx, chatID, target.ID)
	require.NoError(t, err)
	assert.Nil(t, mute, "expired mutes are not active")

	// a new mute extends the existing row
	require.NoError(t, svc.UpsertMute(ctx, chatID, target, "again", modID, until.Add(config.MuteDuration)))
	mute, err = svc.ActiveMute(ctx, chatID, target.ID)
	require.NoError(t, err)
	require.NotNil(t, mute)
	assert.Equal(t, "again", mute.Reason)

	agg, err := svc.CountAggregates(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Mutes)
}

func TestAppendWarning_RollingWindow(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0.Add(-25 * time.Hour)}
	svc := newTestService(t, nil, storage.WithClock(c.Now))

	count, err := svc.AppendWarning(ctx, chatID, target, "old", modID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	c.now = t0.Add(-time.Hour)
	count, err = svc.AppendWarning(ctx, chatID, target, "recent", modID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "the 25h old warning is outside the window")

	c.now = t0
	count, err = svc.AppendWarning(ctx, chatID, target, "spam", modID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// other users and chats do not count
	count, err = svc.AppendWarning(ctx, otherID, target, "spam", modID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	agg, err := svc.CountAggregates(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.Aggregates{Warnings: 3}, agg)
}

func TestAppendAuditLog(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	action := &models.ModerationAction{
		ChatID:            chatID,
		UserID:            target.ID,
		Username:          target.Username,
		ActionType:        models.SanctionWarn,
		Reason:            "spam",
		ModeratorID:       modID,
		ModeratorUsername: "mod",
	}
	require.NoError(t, svc.AppendAuditLog(ctx, action))
	assert.NotEmpty(t, action.ID)

	var stored models.ModerationAction
	require.NoError(t, svc.DB.First(&stored, "id = ?", action.ID).Error)
	assert.Equal(t, models.SanctionWarn, stored.ActionType)
	assert.Equal(t, "mod", stored.ModeratorUsername)
}

func TestUnbanUnmute(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	ok, err := svc.Unban(ctx, chatID, target.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.UpsertBan(ctx, chatID, target, "spam", modID))
	require.NoError(t, svc.UpsertMute(ctx, chatID, target, "spam", modID, time.Now().Add(time.Hour)))

	ok, err = svc.Unban(ctx, chatID, target.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Unmute(ctx, chatID, target.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	agg, err := svc.CountAggregates(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.Aggregates{}, agg)
}

func TestPolicyCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	svc := newTestService(t, rdb, storage.WithPolicyCacheTTL(time.Minute))

	_, err := svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	key := "policy:-1001234"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// served from the cache while it is warm
	require.NoError(t, svc.DB.Model(&models.ChatPolicy{}).Where("chat_id = ?", chatID).
		Update("caps_filter", true).Error)
	p, err := svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, p.CapsFilter)

	_, err = svc.AddBannedWord(ctx, chatID, "casino")
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	p, err = svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, p.CapsFilter)
	assert.Equal(t, models.WordList{"casino"}, p.BannedWords)

	p.Language = "ru"
	require.NoError(t, svc.SavePolicy(ctx, p))
	assert.False(t, mr.Exists(key))
}

func TestPolicyCache_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	svc := newTestService(t, rdb)

	require.NoError(t, mr.Set("policy:-1001234", "{not json"))

	p, err := svc.EnsurePolicy(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, chatID, p.ChatID)
}

func TestClaimUpdate(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	svc := newTestService(t, rdb)

	ok, err := svc.ClaimUpdate(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, config.UpdateDedupTTL, mr.TTL("update:1001"))

	ok, err = svc.ClaimUpdate(ctx, 1001)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.ReleaseUpdate(ctx, 1001))
	ok, err = svc.ClaimUpdate(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimUpdate_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	for i := 0; i < 2; i++ {
		ok, err := svc.ClaimUpdate(ctx, 5)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, svc.ReleaseUpdate(ctx, 5))
}
