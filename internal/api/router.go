package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/tracepipe/internal/analysis"
	"github.com/your-org/tracepipe/internal/api/handlers"
	"github.com/your-org/tracepipe/internal/api/ws"
	"github.com/your-org/tracepipe/internal/auth"
	"github.com/your-org/tracepipe/internal/eventbus"
	"github.com/your-org/tracepipe/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	Registry    *analysis.Registry
	MinIO       *storage.MinIOStore
	Publisher   *eventbus.Publisher
	Hub         *ws.Hub
	FPSInterval float64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.MinIO, cfg.Publisher)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/health", systemH.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	analysisH := handlers.NewAnalysisHandler(cfg.Registry, cfg.FPSInterval)

	// Unversioned legacy-style surface, kept alongside the /v1 group.
	auth1 := r.Group("/")
	auth1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	auth1.POST("/analyze_video", analysisH.Start)
	auth1.GET("/analysis_status/:id", analysisH.Status)
	auth1.GET("/analysis_result/:id", analysisH.Result)
	auth1.DELETE("/analysis/:id", analysisH.Delete)
	auth1.GET("/optimization_stats", analysisH.OptimizationStats)

	// Versioned surface for the supplemented list/stream endpoints.
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.GET("/ws", cfg.Hub.HandleWS)
	v1.GET("/analyses", analysisH.List)

	cropsH := handlers.NewCropsHandler(cfg.MinIO, cfg.Registry)
	v1.GET("/analyses/:id/crops/:target_id", cropsH.Get)

	return r
}
