package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/localization"
	"modguard/backend/internal/metrics"
	"modguard/backend/internal/models"

	"go.uber.org/zap"
)

const (
	CommandStart = "/start"
	CommandStats = "/stats"
	CommandBan   = "/ban"
	CommandMute  = "/mute"
	CommandWarn  = "/warn"
)

// Command is a parsed slash command together with the context it was issued in.
type Command struct {
	// Name is the lower-cased first token, including the leading slash.
	Name   string
	Args   []string
	ChatID int64
	Actor  models.UserRef
	// ReplyTo is the author of the message the command replied to.
	ReplyTo *models.UserRef
}

// Router dispatches commands and enforces role-based authorization.
type Router struct {
	ledger    Ledger
	localizer *localization.Localizer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Route handles cmd for an actor holding role. The boolean is false for commands
// the router does not know; the caller then treats the text as ordinary content.
func (r *Router) Route(ctx context.Context, cmd Command, role models.Role, lang string) (Decision, bool, error) {
	switch cmd.Name {
	case CommandStart:
		r.metrics.Command(cmd.Name, "ok")
		return Reply(cmd.ChatID, r.localizer.GetString(lang, "start_help")), true, nil

	case CommandStats:
		agg, err := r.ledger.CountAggregates(ctx, cmd.ChatID)
		if err != nil {
			return Decision{}, true, fmt.Errorf("count aggregates for chat %d: %w", cmd.ChatID, err)
		}
		r.metrics.Command(cmd.Name, "ok")
		return Reply(cmd.ChatID, r.localizer.Format(lang, "stats_summary", agg.Bans, agg.Mutes, agg.Warnings)), true, nil

	case CommandBan, CommandMute, CommandWarn:
		d, err := r.sanction(ctx, cmd, role, lang)
		return d, true, err
	}

	return Noop(), false, nil
}

func (r *Router) sanction(ctx context.Context, cmd Command, role models.Role, lang string) (Decision, error) {
	if role == models.RoleNone {
		r.metrics.Command(cmd.Name, "denied")
		return Reply(cmd.ChatID, r.localizer.GetString(lang, "no_moderator_rights")), nil
	}
	if cmd.ReplyTo == nil {
		r.metrics.Command(cmd.Name, "reply_required")
		return Reply(cmd.ChatID, r.localizer.GetString(lang, "reply_required")), nil
	}

	target := models.UserRef{ID: cmd.ReplyTo.ID, Username: cmd.ReplyTo.DisplayName()}
	reason := strings.Join(cmd.Args, " ")
	if reason == "" {
		reason = r.localizer.GetString(lang, "default_reason")
	}

	var (
		kind models.SanctionKind
		text string
	)

	switch cmd.Name {
	case CommandBan:
		// /mute and /warn accept any stored role; /ban names the roles explicitly.
		if role != models.RoleAdmin && role != models.RoleModerator {
			r.metrics.Command(cmd.Name, "insufficient_rights")
			return Reply(cmd.ChatID, r.localizer.GetString(lang, "insufficient_rights")), nil
		}
		if err := r.ledger.UpsertBan(ctx, cmd.ChatID, target, reason, cmd.Actor.ID); err != nil {
			return Decision{}, fmt.Errorf("ban user %d in chat %d: %w", target.ID, cmd.ChatID, err)
		}
		kind = models.SanctionBan
		text = r.localizer.Format(lang, "banned", target.Username, reason)

	case CommandMute:
		until := r.now().Add(config.MuteDuration)
		if err := r.ledger.UpsertMute(ctx, cmd.ChatID, target, reason, cmd.Actor.ID, until); err != nil {
			return Decision{}, fmt.Errorf("mute user %d in chat %d: %w", target.ID, cmd.ChatID, err)
		}
		kind = models.SanctionMute
		text = r.localizer.Format(lang, "muted", target.Username, int(config.MuteDuration/time.Minute), reason)

	case CommandWarn:
		count, err := r.ledger.AppendWarning(ctx, cmd.ChatID, target, reason, cmd.Actor.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("warn user %d in chat %d: %w", target.ID, cmd.ChatID, err)
		}
		kind = models.SanctionWarn
		text = r.localizer.Format(lang, "warned", target.Username, count, config.WarningLimit, reason)
	}

	action := &models.ModerationAction{
		ChatID:            cmd.ChatID,
		UserID:            target.ID,
		Username:          target.Username,
		ActionType:        kind,
		Reason:            reason,
		ModeratorID:       cmd.Actor.ID,
		ModeratorUsername: cmd.Actor.DisplayName(),
	}
	if err := r.ledger.AppendAuditLog(ctx, action); err != nil {
		return Decision{}, fmt.Errorf("log %s action in chat %d: %w", kind, cmd.ChatID, err)
	}

	r.metrics.Command(cmd.Name, "ok")
	r.logger.Info("sanction issued",
		zap.String("action", string(kind)),
		zap.Int64("chat_id", cmd.ChatID),
		zap.Int64("user_id", target.ID),
		zap.Int64("moderator_id", cmd.Actor.ID),
		zap.String("reason", reason),
	)

	return Reply(cmd.ChatID, text), nil
}
