package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/dto"
	"copilot-salud-backend/internal/inference"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/roles"
)

type AdminController struct {
	limiter *ratelimit.Limiter
	cache   *inference.ResultCache
	metrics *pipeline.Metrics
}

func NewAdminController(limiter *ratelimit.Limiter, cache *inference.ResultCache, metrics *pipeline.Metrics) *AdminController {
	return &AdminController{
		limiter: limiter,
		cache:   cache,
		metrics: metrics,
	}
}

func RegisterAdminRoutes(router *gin.Engine, issuer *auth.TokenIssuer, controller *AdminController) {
	v1 := router.Group("/api/v1/admin", auth.Middleware(issuer))
	{
		v1.GET("/stats", auth.RequireCapability(roles.CapSystemConfig), controller.HandleStats)
		v1.GET("/metrics", auth.RequireCapability(roles.CapSystemConfig), controller.HandleMetrics)
		v1.POST("/unblock", auth.RequireCapability(roles.CapUserMgmt), controller.HandleUnblock)
		v1.POST("/clear-ip", auth.RequireCapability(roles.CapUserMgmt), controller.HandleClearIP)
	}
}

// guard applies the admin_action rate class; returns false when the
// request was already answered.
func (c *AdminController) guard(ctx *gin.Context) bool {
	user := ctx.GetString(auth.ContextUser)
	if dec := c.limiter.Allow(user, "admin_action", ctx.ClientIP()); !dec.Allowed {
		ctx.Header("Retry-After", strconv.Itoa(dec.RetryAfter))
		ctx.JSON(http.StatusTooManyRequests, model.NewResponse("Rate limit exceeded", nil))
		return false
	}
	return true
}

// HandleStats godoc
// @Summary      System statistics
// @Description  Returns rate limiter state, answer cache counters and pipeline outcome totals.
// @Tags         admin
// @Produce      json
// @Security     Bearer
// @Success      200 {object} dto.SystemStats
// @Failure      403 {object} model.Response "Insufficient permissions"
// @Router       /api/v1/admin/stats [get]
func (c *AdminController) HandleStats(ctx *gin.Context) {
	if !c.guard(ctx) {
		return
	}
	hits, misses, entries := c.cache.Stats()
	ctx.JSON(http.StatusOK, dto.SystemStats{
		RateLimiter: c.limiter.Stats(),
		Cache:       dto.CacheStats{Hits: hits, Misses: misses, Entries: entries},
		Pipeline:    c.metrics.Snapshot(),
	})
}

// HandleMetrics godoc
// @Summary      Pipeline metrics
// @Description  Returns pipeline outcome counters and average latency since start.
// @Tags         admin
// @Produce      json
// @Security     Bearer
// @Success      200 {object} pipeline.Snapshot
// @Router       /api/v1/admin/metrics [get]
func (c *AdminController) HandleMetrics(ctx *gin.Context) {
	if !c.guard(ctx) {
		return
	}
	ctx.JSON(http.StatusOK, c.metrics.Snapshot())
}

// HandleUnblock godoc
// @Summary      Lift a user block
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        request body dto.UnblockRequest true "Blocked username"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.Response "User is not blocked"
// @Router       /api/v1/admin/unblock [post]
func (c *AdminController) HandleUnblock(ctx *gin.Context) {
	if !c.guard(ctx) {
		return
	}
	var req dto.UnblockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	admin := ctx.GetString(auth.ContextUser)
	if !c.limiter.Unblock(req.Username, admin) {
		ctx.JSON(http.StatusNotFound, model.NewResponse("User is not blocked", nil))
		return
	}
	log.Info().Str("user", req.Username).Str("admin", admin).Msg("User unblocked")
	ctx.JSON(http.StatusOK, model.NewResponse("User unblocked", nil))
}

// HandleClearIP godoc
// @Summary      Clear a suspicious IP mark
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        request body dto.ClearIPRequest true "Marked IP"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.Response "IP is not marked"
// @Router       /api/v1/admin/clear-ip [post]
func (c *AdminController) HandleClearIP(ctx *gin.Context) {
	if !c.guard(ctx) {
		return
	}
	var req dto.ClearIPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	admin := ctx.GetString(auth.ContextUser)
	if !c.limiter.ClearIP(req.IP, admin) {
		ctx.JSON(http.StatusNotFound, model.NewResponse("IP is not marked", nil))
		return
	}
	ctx.JSON(http.StatusOK, model.NewResponse("Suspicious IP cleared", nil))
}
