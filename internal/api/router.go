package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syy-ex/hair-makeover/config"
	adminRecharge "github.com/syy-ex/hair-makeover/internal/api/v1/admin/recharge"
	"github.com/syy-ex/hair-makeover/internal/api/v1/auth"
	"github.com/syy-ex/hair-makeover/internal/api/v1/generate"
	"github.com/syy-ex/hair-makeover/internal/api/v1/points"
	"github.com/syy-ex/hair-makeover/internal/api/v1/recharge"
	"github.com/syy-ex/hair-makeover/internal/middleware"
	"github.com/syy-ex/hair-makeover/internal/services"
)

// Services are the domain services the HTTP layer is built on.
type Services struct {
	Auth       *services.AuthService
	Ledger     *services.LedgerService
	Recharge   *services.RechargeService
	Notify     *services.NotifyService
	Generation *services.GenerationService
}

func NewRouter(cfg *config.Config, svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(), middleware.PrometheusMiddleware())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secureCookie := strings.HasPrefix(cfg.PublicBaseURL, "https://")

	// API v1
	v1 := router.Group("/api/v1")
	{
		auth.RegisterRoutes(v1, auth.NewHandler(svc.Auth, secureCookie))

		authorized := v1.Group("/")
		authorized.Use(middleware.AuthMiddleware(svc.Auth))
		{
			points.RegisterRoutes(authorized, points.NewHandler(svc.Ledger))
			generate.RegisterRoutes(authorized, generate.NewHandler(svc.Generation))
		}
		recharge.RegisterRoutes(v1, authorized, recharge.NewHandler(svc.Recharge, svc.Notify))

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(svc.Auth), middleware.AdminAuthMiddleware(svc.Auth))
		{
			adminRecharge.RegisterRoutes(admin, adminRecharge.NewHandler(svc.Recharge))
		}
	}

	return router
}
