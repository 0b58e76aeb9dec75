package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Handler serves the Telegram webhook.
type Handler struct {
	Bot    UpdateHandler
	secret string
	logger *zap.Logger
}

// NewHandler creates a Handler. An empty secret disables the secret-token check.
func NewHandler(bot UpdateHandler, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Bot: bot, secret: secret, logger: logger}
}

// Webhook answers every method on the webhook path: POST carries an update,
// OPTIONS is a CORS preflight and anything else is a liveness probe.
func (h *Handler) Webhook(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")

	switch c.Request.Method {
	case http.MethodOptions:
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusOK)
	case http.MethodPost:
		h.handleUpdate(c)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "Bot is running"})
	}
}

func (h *Handler) handleUpdate(c *gin.Context) {
	if !h.authorized(c.GetHeader(SecretTokenHeader)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("malformed update body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.Bot.HandleUpdate(c.Request.Context(), update); err != nil {
		h.logger.Error("failed to handle update", zap.Int("update_id", update.UpdateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) authorized(token string) bool {
	if h.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

// Health reports that the process is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
