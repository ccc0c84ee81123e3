// Package gatewayapi implements the public HTTP surface described in
// spec §6: login, order submission, order listing, order progress, and
// cancellation, fanning each request out to the right market's engine
// process over internal/wire. Grounded on the teacher repo's
// internal/gateway package (gin.Engine + fx lifecycle + gin-contrib/cors).
package gatewayapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/auth"
)

// NewRouter builds the gin.Engine serving the gateway's HTTP surface.
func NewRouter(registry *ClientRegistry, authSvc *auth.Service, logger *zap.Logger, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(rateLimiter(logger, 300, time.Minute))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	h := newHandlers(registry, authSvc, logger)

	public := r.Group("/v1/public")
	public.POST("/auth/login", h.login)

	v1 := r.Group("/v1")
	v1.Use(auth.Middleware(authSvc, logger))
	v1.GET("/orders", h.getUserOrders)
	v1.POST("/orders", h.insertOrder)
	v1.GET("/:market/:order_id", h.getOrderProgress)
	v1.DELETE("/:market/:order_id", h.tryDeleteOrder)

	return r
}
