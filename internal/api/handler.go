package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AgileSeagull/DIAS/internal/alerts"
	"github.com/AgileSeagull/DIAS/internal/ingestion"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/notify"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

// DisasterStore is the read side of the disaster table.
type DisasterStore interface {
	FindByDisasterID(ctx context.Context, disasterID string) (*models.Disaster, error)
	ListActive(ctx context.Context) ([]models.Disaster, error)
	ListDisasters(ctx context.Context, opts repository.Filter) ([]models.Disaster, error)
	Stats(ctx context.Context) ([]repository.TypeStats, error)
	Ping() error
}

// Triggers runs sync and alert work on demand.
type Triggers interface {
	TriggerSync(ctx context.Context) (ingestion.Summary, error)
	TriggerSyncType(ctx context.Context, t models.DisasterType) (ingestion.Result, error)
	TriggerAlerts(ctx context.Context) (alerts.Report, error)
}

type SyncStatus interface {
	LastSummary() (ingestion.Summary, bool)
	LastResults() map[models.DisasterType]ingestion.Result
	Running() bool
	Types() []models.DisasterType
}

type AlertStatus interface {
	State() alerts.State
	LastReport() (alerts.Report, bool)
}

type Subscriptions interface {
	Subscribe(ctx context.Context, email, country string, userID *uint) (notify.SubscribeResult, error)
	Unsubscribe(ctx context.Context, id uint, email string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, email string) ([]models.Subscription, error)
	ListTopics(ctx context.Context) ([]models.CountryTopic, error)
	SubscriptionStats(ctx context.Context) (repository.SubscriptionStats, error)
	SendWelcome(ctx context.Context, country string, disasters []models.Disaster) (string, error)
}

type CountryResolver interface {
	ResolveAll(ctx context.Context, disasters []models.Disaster) map[string]string
}

// Deps are the collaborators the HTTP surface is wired to. Stream and
// Metrics may be nil, in which case their routes are not registered.
type Deps struct {
	Store         DisasterStore
	Triggers      Triggers
	Sync          SyncStatus
	Alerts        AlertStatus
	Subscriptions Subscriptions
	Resolver      CountryResolver
	Stream        http.Handler
	Metrics       http.Handler
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: slog.With("component", "api"),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}

	api := r.Group("/api")

	disasters := api.Group("/disasters")
	disasters.GET("", h.getDisasters)
	disasters.GET("/stats", h.getStats)
	disasters.GET("/:id", h.getDisaster)

	sync := api.Group("/sync")
	sync.POST("", h.syncAll)
	sync.GET("/status", h.syncStatus)
	sync.POST("/:type", h.syncType)

	alertRoutes := api.Group("/alerts")
	alertRoutes.POST("/run", h.runAlerts)
	alertRoutes.GET("/status", h.alertStatus)
	if h.deps.Stream != nil {
		alertRoutes.GET("/stream", gin.WrapH(h.deps.Stream))
	}

	subscribe := api.Group("/subscribe")
	subscribe.POST("", h.subscribe)
	subscribe.GET("/my-subscriptions", h.mySubscriptions)
	subscribe.GET("/countries", h.countries)
	subscribe.GET("/topics", h.topics)
	subscribe.GET("/stats", h.subscriptionStats)
	subscribe.DELETE("/:id", h.unsubscribe)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.deps.Store.Ping(); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func success(c *gin.Context, message string, data any) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
