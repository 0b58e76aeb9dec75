package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig configures NewRouter. Limiter and Logger are optional.
type RouterConfig struct {
	WebhookPath string
	Limiter     *RateLimiter
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

// NewRouter wires the webhook, health and metrics routes.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	}))
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	webhook := []gin.HandlerFunc{h.Webhook}
	if cfg.Limiter != nil {
		webhook = append([]gin.HandlerFunc{RateLimitMiddleware(cfg.Limiter)}, webhook...)
	}
	r.Any(cfg.WebhookPath, webhook...)

	r.GET("/healthz", h.Health)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
