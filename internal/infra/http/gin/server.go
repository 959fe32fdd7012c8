package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"gueststay/internal/infra/config"
	"gueststay/internal/infra/obs"
)

type GuestStayHTTP interface {
	CheckIn(c *gin.Context)
	RecordCharge(c *gin.Context)
	RecordPayment(c *gin.Context)
	CheckOut(c *gin.Context)
	Details(c *gin.Context)
	ExportFolio(c *gin.Context)
}

type Handlers struct {
	GuestStays GuestStayHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	router := NewRouter(RouterConfig{
		AllowOrigins:   cfg.CORSAllowOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, obsMW, health, h)
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type RouterConfig struct {
	AllowOrigins   []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.RequestID())
	router.Use(obsMW.Recovery())
	router.Use(obsMW.AccessLog())
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", "If-Match", "If-None-Match", "X-Request-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"ETag",
			"Location",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if cfg.RateLimitRPS > 0 {
		api.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute).Middleware())
	}
	if h.GuestStays != nil {
		stays := api.Group("/guests/:guestId/stays/:roomId")
		stays.POST("", h.GuestStays.CheckIn)
		period := stays.Group("/periods/:checkInDate")
		period.GET("", h.GuestStays.Details)
		period.DELETE("", h.GuestStays.CheckOut)
		period.POST("/charges", h.GuestStays.RecordCharge)
		period.POST("/payments", h.GuestStays.RecordPayment)
		period.POST("/folio", h.GuestStays.ExportFolio)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
