package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/internal/handler"
	"github.com/noah-isme/asset-inventory-api/internal/middleware"
	"github.com/noah-isme/asset-inventory-api/internal/service"
	"github.com/noah-isme/asset-inventory-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/asset-inventory-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/asset-inventory-api/pkg/middleware/requestid"
)

// Options controls router construction.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator
}

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Items       *handler.ItemHandler
	Requests    *handler.RequestHandler
	Assignments *handler.AssignmentHandler
	History     *handler.HistoryHandler
	Exports     *handler.ExportHandler
	Dashboard   *handler.DashboardHandler
	Ops         *handler.MetricsHandler
}

// NewRouter builds the gin engine with ops endpoints at the root and the API under the prefix.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix, middleware.JWT(opts.Auth))
	adminOnly := middleware.AdminOnly()

	api.GET("/categories", h.Items.Categories)
	api.GET("/dashboard", h.Dashboard.Summary)
	api.GET("/metrics/summary", adminOnly, h.Ops.Summary)

	items := api.Group("/items")
	{
		items.GET("", h.Items.List)
		items.POST("", h.Items.Create)
		items.GET("/export", adminOnly, h.Exports.Items)
		items.GET("/:id", h.Items.Get)
		items.GET("/:id/availability", h.Items.Availability)
		items.PATCH("/:id", adminOnly, h.Items.Update)
		items.DELETE("/:id", adminOnly, h.Items.Delete)
	}

	requests := api.Group("/requests")
	{
		requests.GET("", h.Requests.List)
		requests.POST("", h.Requests.Submit)
		requests.GET("/:id", h.Requests.Get)
		requests.PATCH("/:id", h.Requests.Update)
		requests.DELETE("/:id", h.Requests.Delete)
		requests.POST("/:id/approve", adminOnly, h.Requests.Approve)
		requests.POST("/:id/reject", adminOnly, h.Requests.Reject)
		requests.POST("/:id/complete", adminOnly, h.Requests.Complete)
	}

	assignments := api.Group("/assignments")
	{
		assignments.GET("", h.Assignments.List)
		assignments.GET("/active", h.Assignments.Active)
		assignments.POST("", adminOnly, h.Assignments.Assign)
		assignments.POST("/:id/return", h.Assignments.Return)
	}

	history := api.Group("/history")
	{
		history.GET("", h.History.List)
		history.GET("/export", adminOnly, h.Exports.History)
	}

	return r
}
