// Package moderation decides what the bot does with an incoming chat message.
//
// Messages starting with '/' take the command path; everything else, and commands
// the router does not recognize, take the content path through the filter package.
// The engine keeps no state between messages and never retries storage calls.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modguard/backend/internal/config"
	"modguard/backend/internal/filter"
	"modguard/backend/internal/localization"
	"modguard/backend/internal/metrics"
	"modguard/backend/internal/models"

	"go.uber.org/zap"
)

// Message is the engine's view of an inbound chat message.
type Message struct {
	ChatID    int64
	MessageID int
	From      models.UserRef
	Text      string
	// Caption of a media message. It is filtered but never parsed as a command.
	Caption string
	// ReplyTo is the author of the replied-to message, nil when the message is not a reply.
	ReplyTo *models.UserRef
}

// Content is the text subject to filtering.
func (m Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Engine composes filter evaluation and command routing into one Decision per message.
type Engine struct {
	ledger      Ledger
	localizer   *localization.Localizer
	router      *Router
	metrics     *metrics.Metrics
	logger      *zap.Logger
	botUsername string
	defaultLang string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBotUsername makes "/cmd@username" equivalent to "/cmd".
func WithBotUsername(username string) Option {
	return func(e *Engine) { e.botUsername = strings.ToLower(strings.TrimPrefix(username, "@")) }
}

// WithDefaultLanguage sets the reply language for chats without one.
func WithDefaultLanguage(lang string) Option {
	return func(e *Engine) { e.defaultLang = lang }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now, used for mute expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine backed by ledger.
func NewEngine(ledger Ledger, localizer *localization.Localizer, opts ...Option) *Engine {
	e := &Engine{
		ledger:      ledger,
		localizer:   localizer,
		logger:      zap.NewNop(),
		defaultLang: config.DefaultLanguage,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.router = &Router{
		ledger:    ledger,
		localizer: localizer,
		metrics:   e.metrics,
		logger:    e.logger,
		now:       e.now,
	}
	return e
}

// Process returns the decision for msg. Errors are storage faults only;
// denials and missing context come back as Reply decisions.
func (e *Engine) Process(ctx context.Context, msg Message) (Decision, error) {
	policy, err := e.ledger.EnsurePolicy(ctx, msg.ChatID)
	if err != nil {
		return Decision{}, fmt.Errorf("ensure policy for chat %d: %w", msg.ChatID, err)
	}
	lang := e.language(policy)

	if strings.HasPrefix(msg.Text, "/") {
		fields := strings.Fields(msg.Text)

		role, err := e.ledger.GetRole(ctx, msg.ChatID, msg.From.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("get role of user %d in chat %d: %w", msg.From.ID, msg.ChatID, err)
		}

		cmd := Command{
			Name:    e.commandName(fields[0]),
			Args:    fields[1:],
			ChatID:  msg.ChatID,
			Actor:   msg.From,
			ReplyTo: msg.ReplyTo,
		}

		d, handled, err := e.router.Route(ctx, cmd, role, lang)
		if err != nil {
			return Decision{}, err
		}
		if handled {
			e.metrics.Decision(d.Kind.String())
			return d, nil
		}
		e.logger.Debug("unrecognized command, filtering as content",
			zap.Int64("chat_id", msg.ChatID),
			zap.String("command", cmd.Name),
		)
	}

	violations := filter.Evaluate(msg.Content(), *policy)
	if violations.Empty() {
		e.metrics.Decision(DecisionNoop.String())
		return Noop(), nil
	}

	for _, tag := range violations {
		e.metrics.Violation(string(tag))
	}
	e.metrics.Decision(DecisionDelete.String())
	e.logger.Info("message violates policy",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("user_id", msg.From.ID),
		zap.Int("message_id", msg.MessageID),
		zap.Any("violations", violations),
	)
	return Delete(msg.ChatID, msg.MessageID), nil
}

func (e *Engine) commandName(token string) string {
	name := strings.ToLower(token)
	if e.botUsername != "" {
		name = strings.TrimSuffix(name, "@"+e.botUsername)
	}
	return name
}

func (e *Engine) language(policy *models.ChatPolicy) string {
	if policy.Language != "" && e.localizer.Has(policy.Language) {
		return policy.Language
	}
	return e.defaultLang
}
