package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/metrics"
	"learnpath/internal/repository"
	"learnpath/internal/service"
	"learnpath/internal/storage"
)

// Stores groups the persistence layer the routes read and write.
type Stores struct {
	Roadmaps     repository.Owned[domain.Roadmap]
	Milestones   repository.Owned[domain.Milestone]
	Tasks        repository.TaskRepository
	TimeLogs     repository.Owned[domain.TimeLog]
	Resources    repository.ResourceRepository
	Tags         repository.Owned[domain.Tag]
	Skills       repository.Owned[domain.Skill]
	Achievements repository.Owned[domain.Achievement]
	Settings     repository.Singleton[domain.Settings]
	Progress     repository.Singleton[domain.Progress]
	Stats        repository.Singleton[domain.LearningStats]
}

type Options struct {
	AllowedOrigins []string
	// SecureCookies marks the refresh cookie Secure.
	SecureCookies bool
	// KeyPrefix is prepended to attachment object keys.
	KeyPrefix string
	Logger    logrus.FieldLogger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth    service.AuthService
	stats   *service.StatsService
	stores  Stores
	storage storage.Service
	opts    Options
	logger  logrus.FieldLogger
}

// NewHandler builds the handler. store may be nil, in which case the
// attachment routes answer 503.
func NewHandler(authSvc service.AuthService, statsSvc *service.StatsService, stores Stores, store storage.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		auth:    authSvc,
		stats:   statsSvc,
		stores:  stores,
		storage: store,
		opts:    opts,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	useJSONFieldNames()

	router.Use(corsMiddleware(h.opts.AllowedOrigins))
	router.Use(h.requestLogger())
	if h.opts.Metrics != nil {
		router.Use(h.opts.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(h.opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", h.logout)
		authGroup.GET("/profile", h.requireAuth(), h.profile)
		authGroup.PUT("/profile", h.requireAuth(), h.updateProfile)
		authGroup.PUT("/password", h.requireAuth(), h.changePassword)
	}

	protected := api.Group("", h.requireAuth())
	h.roadmapRoutes().register(protected.Group("/roadmaps"), h)
	h.milestoneRoutes().register(protected.Group("/milestones"), h)
	h.taskRoutes().register(protected.Group("/tasks"), h)
	h.timeLogRoutes().register(protected.Group("/timelogs"), h)
	h.resourceRoutes().register(protected.Group("/resources"), h)
	h.tagRoutes().register(protected.Group("/tags"), h)
	h.skillRoutes().register(protected.Group("/skills"), h)
	h.achievementRoutes().register(protected.Group("/achievements"), h)

	protected.GET("/roadmaps/:id/milestones", h.roadmapMilestones)
	protected.GET("/tasks/:id/timelogs", h.taskTimeLogs)

	protected.PUT("/resources/:id/attachment", h.uploadAttachment)
	protected.GET("/resources/:id/attachment", h.attachmentURL)
	protected.DELETE("/resources/:id/attachment", h.deleteAttachment)

	settings := singletonRoutes[domain.Settings, updateSettingsRequest]{store: h.stores.Settings, update: (*updateSettingsRequest).fields}
	settings.register(protected.Group("/settings"), h)
	progress := singletonRoutes[domain.Progress, updateProgressRequest]{store: h.stores.Progress, update: (*updateProgressRequest).fields}
	progress.register(protected.Group("/progress"), h)
	protected.GET("/progress/summary", h.progressSummary)
	stats := singletonRoutes[domain.LearningStats, updateStatsRequest]{store: h.stores.Stats, update: (*updateStatsRequest).fields}
	stats.register(protected.Group("/learning-stats"), h)
}

// corsMiddleware allows credentialed requests from the configured origins.
// A "*" entry allows any origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := origins[origin]; ok || allowAll {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
				c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
				c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			}
			c.Writer.Header().Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
