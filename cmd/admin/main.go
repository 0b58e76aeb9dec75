package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/models"
	"modguard/backend/internal/storage"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// opener connects to the store. Tests replace it with an in-memory database.
type opener func(cctx *cli.Context) (storage.Storage, func(), error)

func openStore(cctx *cli.Context) (storage.Storage, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if cctx.Bool("verbose") {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}

	db, err := storage.OpenPostgres(cfg.DSN(), cctx.Bool("verbose"))
	if err != nil {
		return nil, nil, err
	}
	rdb, err := storage.OpenRedis(cctx.Context, cfg.Redis)
	if err != nil {
		// the cache is only invalidated from here, so a missing Redis is not fatal
		logger.Warn("redis unavailable, cached policies expire on their own", zap.Error(err))
		rdb = nil
	}

	store := storage.NewStorageService(db, rdb,
		storage.WithLogger(logger),
		storage.WithRetry(cfg.Retry),
		storage.WithPolicyCacheTTL(cfg.PolicyCacheTTL),
	)
	closeFn := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = logger.Sync()
	}
	return store, closeFn, nil
}

func main() {
	if err := newApp(openStore, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(open opener, out io.Writer) *cli.App {
	withStore := func(fn action) cli.ActionFunc {
		return func(cctx *cli.Context) error {
			s, closeFn, err := open(cctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(cctx.Context, cctx, s)
		}
	}

	return &cli.App{
		Name:      "modguard-admin",
		Usage:     "manage chat policies, moderators and sanctions",
		UsageText: "modguard-admin [global options] command [command options] -- <chat_id> [args...]\n\n" +
			"Group chat IDs are negative; put them after -- so they are not read as flags.",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "log SQL and storage warnings"},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: withStore(migrate(out)),
			},
			{
				Name:  "policy",
				Usage: "show or change a chat's content policy",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						ArgsUsage: "<chat_id>",
						Action:    withStore(policyShow(out)),
					},
					{
						Name:      "set",
						ArgsUsage: "<chat_id>",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "block-links"},
							&cli.BoolFlag{Name: "block-invites"},
							&cli.BoolFlag{Name: "anti-spam"},
							&cli.BoolFlag{Name: "caps-filter"},
							&cli.StringFlag{Name: "language", Usage: "reply language, empty for the server default"},
						},
						Action: withStore(policySet(out)),
					},
				},
			},
			{
				Name:  "words",
				Usage: "manage a chat's banned words",
				Subcommands: []*cli.Command{
					{Name: "add", ArgsUsage: "<chat_id> <word>", Action: withStore(wordsAdd(out))},
					{Name: "remove", ArgsUsage: "<chat_id> <word>", Action: withStore(wordsRemove(out))},
					{Name: "list", ArgsUsage: "<chat_id>", Action: withStore(wordsList(out))},
				},
			},
			{
				Name:  "role",
				Usage: "grant or revoke moderation roles",
				Subcommands: []*cli.Command{
					{
						Name:      "grant",
						ArgsUsage: "<chat_id> <user_id> moderator|admin",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "username"},
						},
						Action: withStore(roleGrant(out)),
					},
					{Name: "revoke", ArgsUsage: "<chat_id> <user_id>", Action: withStore(roleRevoke(out))},
				},
			},
			{Name: "unban", ArgsUsage: "<chat_id> <user_id>", Action: withStore(unban(out))},
			{Name: "unmute", ArgsUsage: "<chat_id> <user_id>", Action: withStore(unmute(out))},
			{Name: "stats", ArgsUsage: "<chat_id> [user_id]", Action: withStore(stats(out))},
		},
	}
}

type action func(ctx context.Context, cctx *cli.Context, s storage.Storage) error

func parseID(cctx *cli.Context, i int, name string) (int64, error) {
	raw := cctx.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func chatUser(cctx *cli.Context) (int64, int64, error) {
	chatID, err := parseID(cctx, 0, "chat_id")
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseID(cctx, 1, "user_id")
	if err != nil {
		return 0, 0, err
	}
	return chatID, userID, nil
}

func migrate(out io.Writer) action {
	return func(ctx context.Context, _ *cli.Context, s storage.Storage) error {
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "schema is up to date")
		return nil
	}
}

func printPolicy(out io.Writer, p *models.ChatPolicy) {
	lang := p.Language
	if lang == "" {
		lang = "(default)"
	}
	fmt.Fprintf(out, "chat:          %d\n", p.ChatID)
	fmt.Fprintf(out, "block_links:   %t\n", p.BlockLinks)
	fmt.Fprintf(out, "block_invites: %t\n", p.BlockInvites)
	fmt.Fprintf(out, "anti_spam:     %t\n", p.AntiSpam)
	fmt.Fprintf(out, "caps_filter:   %t\n", p.CapsFilter)
	fmt.Fprintf(out, "language:      %s\n", lang)
	fmt.Fprintf(out, "banned_words:  %s\n", strings.Join(p.BannedWords, ", "))
}

// loadPolicy creates the chat's policy if needed and reads it from the database, bypassing the cache.
func loadPolicy(ctx context.Context, s storage.Storage, chatID int64) (*models.ChatPolicy, error) {
	if _, err := s.EnsurePolicy(ctx, chatID); err != nil {
		return nil, err
	}
	return s.GetPolicy(ctx, chatID)
}

func policyShow(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, err := parseID(cctx, 0, "chat_id")
		if err != nil {
			return err
		}
		p, err := loadPolicy(ctx, s, chatID)
		if err != nil {
			return err
		}
		printPolicy(out, p)
		return nil
	}
}

func policySet(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, err := parseID(cctx, 0, "chat_id")
		if err != nil {
			return err
		}
		p, err := loadPolicy(ctx, s, chatID)
		if err != nil {
			return err
		}

		if cctx.IsSet("block-links") {
			p.BlockLinks = cctx.Bool("block-links")
		}
		if cctx.IsSet("block-invites") {
			p.BlockInvites = cctx.Bool("block-invites")
		}
		if cctx.IsSet("anti-spam") {
			p.AntiSpam = cctx.Bool("anti-spam")
		}
		if cctx.IsSet("caps-filter") {
			p.CapsFilter = cctx.Bool("caps-filter")
		}
		if cctx.IsSet("language") {
			p.Language = cctx.String("language")
		}

		if err := s.SavePolicy(ctx, p); err != nil {
			return err
		}
		printPolicy(out, p)
		return nil
	}
}

func wordArg(cctx *cli.Context) (int64, string, error) {
	chatID, err := parseID(cctx, 0, "chat_id")
	if err != nil {
		return 0, "", err
	}
	word := cctx.Args().Get(1)
	if word == "" {
		return 0, "", errors.New("missing word")
	}
	return chatID, word, nil
}

func wordsAdd(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, word, err := wordArg(cctx)
		if err != nil {
			return err
		}
		added, err := s.AddBannedWord(ctx, chatID, word)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(out, "%q is already banned\n", word)
			return nil
		}
		fmt.Fprintf(out, "banned %q\n", strings.ToLower(strings.TrimSpace(word)))
		return nil
	}
}

func wordsRemove(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, word, err := wordArg(cctx)
		if err != nil {
			return err
		}
		removed, err := s.RemoveBannedWord(ctx, chatID, word)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(out, "%q was not banned\n", word)
			return nil
		}
		fmt.Fprintf(out, "removed %q\n", word)
		return nil
	}
}

func wordsList(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, err := parseID(cctx, 0, "chat_id")
		if err != nil {
			return err
		}
		p, err := loadPolicy(ctx, s, chatID)
		if err != nil {
			return err
		}
		for _, w := range p.BannedWords {
			fmt.Fprintln(out, w)
		}
		return nil
	}
}

func roleGrant(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, userID, err := chatUser(cctx)
		if err != nil {
			return err
		}
		role, ok := models.ParseRole(strings.ToLower(cctx.Args().Get(2)))
		if !ok {
			return fmt.Errorf("role must be %s or %s", models.RoleModerator, models.RoleAdmin)
		}
		user := models.UserRef{ID: userID, Username: strings.TrimPrefix(cctx.String("username"), "@")}
		if err := s.GrantRole(ctx, chatID, user, role); err != nil {
			return err
		}
		fmt.Fprintf(out, "user %d is now %s in chat %d\n", userID, role, chatID)
		return nil
	}
}

func roleRevoke(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, userID, err := chatUser(cctx)
		if err != nil {
			return err
		}
		err = s.RevokeRole(ctx, chatID, userID)
		if errors.Is(err, storage.ErrModeratorNotFound) {
			fmt.Fprintf(out, "user %d has no role in chat %d\n", userID, chatID)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "revoked role of user %d in chat %d\n", userID, chatID)
		return nil
	}
}

func unban(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, userID, err := chatUser(cctx)
		if err != nil {
			return err
		}
		ok, err := s.Unban(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "user %d is not banned in chat %d\n", userID, chatID)
			return nil
		}
		fmt.Fprintf(out, "user %d unbanned in chat %d\n", userID, chatID)
		return nil
	}
}

func unmute(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, userID, err := chatUser(cctx)
		if err != nil {
			return err
		}
		ok, err := s.Unmute(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "user %d is not muted in chat %d\n", userID, chatID)
			return nil
		}
		fmt.Fprintf(out, "user %d unmuted in chat %d\n", userID, chatID)
		return nil
	}
}

func stats(out io.Writer) action {
	return func(ctx context.Context, cctx *cli.Context, s storage.Storage) error {
		chatID, err := parseID(cctx, 0, "chat_id")
		if err != nil {
			return err
		}
		agg, err := s.CountAggregates(ctx, chatID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "bans: %d\nmutes: %d\nwarnings: %d\n", agg.Bans, agg.Mutes, agg.Warnings)

		if cctx.Args().Len() < 2 {
			return nil
		}
		userID, err := parseID(cctx, 1, "user_id")
		if err != nil {
			return err
		}
		role, err := s.GetRole(ctx, chatID, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "user %d role: %s\n", userID, role)

		mute, err := s.ActiveMute(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if mute == nil {
			fmt.Fprintf(out, "user %d is not muted\n", userID)
			return nil
		}
		fmt.Fprintf(out, "user %d muted until %s: %s\n", userID, mute.MutedUntil.Format(time.RFC3339), mute.Reason)
		return nil
	}
}
