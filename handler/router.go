package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tieubaoca/rag-assistant/middleware"
	"github.com/tieubaoca/rag-assistant/service"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RAGService  *service.RAGService
	FileService *service.FileService
	UploadDir   string
	AdminSecret string
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter wires the public read routes and the admin-protected write routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsHandler := NewCorsHandler(cfg.AllowedOrigins)
	ragHandler := NewRAGHandler(cfg.RAGService, cfg.Logger)
	wsService := service.NewWebSocketService(cfg.RAGService, cfg.Logger.Named("ws"))

	router.Use(corsHandler.CorsMiddleware)

	router.GET("/", ragHandler.HandleRoot)
	router.GET("/health", ragHandler.HandleHealth)
	router.GET("/models", ragHandler.HandleModels)
	router.GET("/stats", ragHandler.HandleStats)
	router.POST("/ask", ragHandler.HandleAsk)
	router.POST("/fulfillment", ragHandler.HandleFulfillment)
	router.GET("/ws/ask", gin.WrapF(wsService.HandleAsk))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.UploadDir != "" {
		documentHandler := NewDocumentHandler(cfg.UploadDir)
		router.GET("/documents", documentHandler.ServeDocument)
	}

	adminRoutes := router.Group("/")
	adminRoutes.Use(middleware.AdminAuthMiddleware(cfg.AdminSecret))
	{
		adminRoutes.POST("/upsert", ragHandler.HandleUpsert)
		adminRoutes.POST("/delete_by_source", ragHandler.HandleDeleteBySource)
		if cfg.FileService != nil {
			uploadHandler := NewUploadHandler(cfg.FileService, cfg.Logger)
			adminRoutes.POST("/upload", uploadHandler.UploadDocumentHandler)
		}
	}

	return router
}
