package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/dto"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/roles"
	"copilot-salud-backend/internal/store"
)

type QueryController struct {
	orchestrator pipeline.Orchestrator
	history      store.HistoryStore
	defaultTheme chart.Theme
}

func NewQueryController(orchestrator pipeline.Orchestrator, history store.HistoryStore, defaultTheme chart.Theme) *QueryController {
	return &QueryController{
		orchestrator: orchestrator,
		history:      history,
		defaultTheme: defaultTheme,
	}
}

func RegisterQueryRoutes(router *gin.Engine, issuer *auth.TokenIssuer, controller *QueryController) {
	v1 := router.Group("/api/v1/ai", auth.Middleware(issuer), auth.RequireCapability(roles.CapAIAnalysis))
	{
		v1.POST("/query", controller.HandleQuery)
		v1.GET("/history", controller.HandleHistory)
		v1.DELETE("/history", controller.HandleClearHistory)
	}
}

// HandleQuery godoc
// @Summary      Answer a natural-language health query
// @Description  Runs the full answer pipeline: cache lookup, rate limiting, role-filtered dataset load, intent classification, LLM inference, response parsing and chart synthesis.
// @Tags         ai
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        request body dto.AIQueryRequest true "Query and optional theme (light/dark)"
// @Success      200 {object} dto.AIQueryResponse "Answer with chart, fresh or from cache"
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      429 {object} dto.AIQueryResponse "Rate limited"
// @Failure      502 {object} dto.AIQueryResponse "Upstream model failure"
// @Router       /api/v1/ai/query [post]
func (c *QueryController) HandleQuery(ctx *gin.Context) {
	var req dto.AIQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}

	theme := c.defaultTheme
	if req.Theme == string(chart.ThemeLight) || req.Theme == string(chart.ThemeDark) {
		theme = chart.Theme(req.Theme)
	}

	username := ctx.GetString(auth.ContextUser)
	result := c.orchestrator.Run(ctx.Request.Context(), pipeline.Request{
		Query:  req.Query,
		Role:   ctx.GetString(auth.ContextRole),
		UserID: username,
		IP:     ctx.ClientIP(),
		Theme:  theme,
	})

	if _, err := c.history.Record(ctx.Request.Context(), username, req.Query, result); err != nil {
		log.Warn().Err(err).Msg("Failed to record query history")
	}

	response := dto.AIQueryResponse{
		Status:     string(result.Status),
		Analysis:   result.Analysis,
		Chart:      result.Chart,
		Intent:     result.Intent,
		Reason:     result.Reason,
		RetryAfter: result.RetryAfter,
		Warning:    result.Warning,
		Error:      result.Error,
		DurationMS: result.Duration.Milliseconds(),
	}

	switch result.Status {
	case pipeline.StatusSuccess, pipeline.StatusCacheHit:
		ctx.JSON(http.StatusOK, response)
	case pipeline.StatusRejected:
		if result.Reason == pipeline.RejectedPermission {
			ctx.JSON(http.StatusForbidden, response)
			return
		}
		ctx.Header("Retry-After", strconv.Itoa(result.RetryAfter))
		ctx.JSON(http.StatusTooManyRequests, response)
	case pipeline.StatusCancelled:
		ctx.JSON(http.StatusRequestTimeout, response)
	default:
		log.Error().Str("reason", result.Reason).Str("error", result.Error).Msg("Pipeline run failed")
		if result.Reason == pipeline.FailureUpstream {
			ctx.JSON(http.StatusBadGateway, response)
			return
		}
		ctx.JSON(http.StatusInternalServerError, response)
	}
}

// HandleHistory godoc
// @Summary      List the caller's recent queries
// @Description  Returns the session trail of answered queries for the authenticated user, newest last.
// @Tags         ai
// @Produce      json
// @Security     Bearer
// @Success      200 {array} store.HistoryEntry
// @Router       /api/v1/ai/history [get]
func (c *QueryController) HandleHistory(ctx *gin.Context) {
	entries, err := c.history.History(ctx.Request.Context(), ctx.GetString(auth.ContextUser))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to load history", nil))
		return
	}
	ctx.JSON(http.StatusOK, entries)
}

// HandleClearHistory godoc
// @Summary      Clear the caller's query history
// @Tags         ai
// @Produce      json
// @Security     Bearer
// @Success      200 {object} model.Response
// @Router       /api/v1/ai/history [delete]
func (c *QueryController) HandleClearHistory(ctx *gin.Context) {
	c.history.Clear(ctx.Request.Context(), ctx.GetString(auth.ContextUser))
	ctx.JSON(http.StatusOK, model.NewResponse("History cleared", nil))
}
