// controller/admin_controller.go
package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/bouncer/audit"
	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/service"
	"github.com/dev-mohitbeniwal/bouncer/util"
	helper_util "github.com/dev-mohitbeniwal/bouncer/util/helper"
)

// AdminController serves the operator endpoints. It expects to be mounted
// behind the admin group middleware.
type AdminController struct {
	bouncerService service.IBouncerService
}

func NewAdminController(bouncerService service.IBouncerService) *AdminController {
	return &AdminController{
		bouncerService: bouncerService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AdminController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sync", ac.SyncPolicies)

	policies := r.Group("/policies")
	{
		policies.GET("", ac.ListPolicies)
		policies.GET("/:id", ac.GetPolicy)
	}

	caches := r.Group("/cache")
	{
		caches.GET("/stats", ac.CacheStats)
		caches.DELETE("/decisions", ac.ClearDecisions)
	}

	r.GET("/audit", ac.QueryAudit)
}

func (ac *AdminController) SyncPolicies(c *gin.Context) {
	ctx := ac.adminContext(c)
	if err := ac.bouncerService.SyncPolicies(ctx); err != nil {
		util.RespondWithError(c, http.StatusBadGateway, "Policy sync failed", err)
		return
	}

	stats := ac.bouncerService.CacheStats(ctx)
	c.JSON(http.StatusOK, gin.H{
		"status":         "synced",
		"bundle_version": stats.BundleVersion,
		"last_sync":      stats.LastSync,
	})
}

func (ac *AdminController) ListPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, ac.bouncerService.ListPolicies(ac.adminContext(c)))
}

func (ac *AdminController) GetPolicy(c *gin.Context) {
	policyID := c.Param("id")

	policy, err := ac.bouncerService.GetPolicy(ac.adminContext(c), policyID)
	if err != nil {
		if errors.Is(err, bouncer_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve policy", err)
		}
		return
	}

	c.JSON(http.StatusOK, policy)
}

func (ac *AdminController) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, ac.bouncerService.CacheStats(ac.adminContext(c)))
}

func (ac *AdminController) ClearDecisions(c *gin.Context) {
	n := ac.bouncerService.ClearDecisions(ac.adminContext(c))
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// QueryAudit endpoint. Accepts user_id, resource_id, from, to and size.
func (ac *AdminController) QueryAudit(c *gin.Context) {
	size, err := helper_util.GetSizeParam(c, 100)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid size parameter", err)
		return
	}
	from, to, err := helper_util.GetTimeRangeParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	logs, err := ac.bouncerService.QueryAudit(ac.adminContext(c), audit.Query{
		From:       from,
		To:         to,
		UserID:     c.Query("user_id"),
		ResourceID: c.Query("resource_id"),
		Size:       size,
	})
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

func (ac *AdminController) adminContext(c *gin.Context) context.Context {
	ctx := service.WithRequestID(c.Request.Context(), util.GetRequestID(c))
	return service.WithRequestingUser(ctx, util.GetUserIDFromContext(c))
}
