// controller/bouncer_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/service"
	"github.com/dev-mohitbeniwal/bouncer/util"
)

type BouncerController struct {
	bouncerService service.IBouncerService
}

func NewBouncerController(bouncerService service.IBouncerService) *BouncerController {
	return &BouncerController{
		bouncerService: bouncerService,
	}
}

// RegisterRoutes registers the API routes
func (bc *BouncerController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/authorize", bc.Authorize)
}

// RegisterHealth mounts the health check outside the versioned API.
func (bc *BouncerController) RegisterHealth(r gin.IRoutes) {
	r.GET("/health", bc.Health)
}

// Authorize endpoint. A deny is still a 200; only malformed requests and
// internal failures map to error statuses.
func (bc *BouncerController) Authorize(c *gin.Context) {
	var req model.AuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorization request", err)
		return
	}

	ctx := service.WithRequestID(c.Request.Context(), util.GetRequestID(c))
	result, err := bc.bouncerService.Authorize(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, bouncer_errors.ErrInvalidRequest):
			util.RespondWithError(c, http.StatusBadRequest, err.Error(), err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to authorize request", err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (bc *BouncerController) Health(c *gin.Context) {
	if err := bc.bouncerService.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
