// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/bouncer/controller"
	"github.com/dev-mohitbeniwal/bouncer/middleware"
)

type Options struct {
	JWTSecret  string
	AdminGroup string

	// Limiter enables per-client rate limiting on the API group when set.
	Limiter           middleware.Limiter
	RateLimitRequests int
	RateLimitDuration time.Duration
}

func SetupRouter(controllers *controller.Controllers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	controllers.Bouncer.RegisterHealth(router)

	api := router.Group("/api/v1")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimiter(opts.Limiter, opts.RateLimitRequests, opts.RateLimitDuration))
	}
	controllers.Bouncer.RegisterRoutes(api)

	admin := api.Group("/admin")
	admin.Use(middleware.GroupAuthMiddleware(opts.JWTSecret, []string{opts.AdminGroup}))
	controllers.Admin.RegisterRoutes(admin)

	return router
}
