package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/analytics"
	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/dto"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/roles"
)

type DatasetController struct {
	loader  dataset.Loader
	limiter *ratelimit.Limiter
}

func NewDatasetController(loader dataset.Loader, limiter *ratelimit.Limiter) *DatasetController {
	return &DatasetController{
		loader:  loader,
		limiter: limiter,
	}
}

func RegisterDatasetRoutes(router *gin.Engine, issuer *auth.TokenIssuer, controller *DatasetController) {
	v1 := router.Group("/api/v1/datasets", auth.Middleware(issuer), auth.RequireCapability(roles.CapViewData))
	{
		v1.GET("", controller.HandleCatalog)
	}
	reports := router.Group("/api/v1/reports", auth.Middleware(issuer), auth.RequireCapability(roles.CapReports))
	{
		reports.GET("/equity", controller.HandleEquityReport)
		reports.GET("/accessibility", controller.HandleAccessibilityReport)
		reports.GET("/service-gaps", controller.HandleServiceGapsReport)
	}
}

// HandleCatalog godoc
// @Summary      List datasets visible to the caller
// @Description  Loads the role-filtered dataset bundle and returns row counts and column names per dataset. Datasets outside the role whitelist are absent, not empty.
// @Tags         datasets
// @Produce      json
// @Security     Bearer
// @Success      200 {object} dto.DatasetCatalog
// @Failure      429 {object} model.Response "Rate limited"
// @Failure      500 {object} model.Response "Datasets unavailable"
// @Router       /api/v1/datasets [get]
func (c *DatasetController) HandleCatalog(ctx *gin.Context) {
	bundle := c.loadForReport(ctx)
	if bundle == nil {
		return
	}

	catalog := dto.DatasetCatalog{Role: ctx.GetString(auth.ContextRole), Warnings: bundle.Warnings}
	for _, key := range bundle.Keys() {
		frame, _ := bundle.Frame(key)
		catalog.Datasets = append(catalog.Datasets, dto.DatasetInfo{
			Key:     key,
			Rows:    frame.NumRows(),
			Columns: frame.ColumnNames(),
		})
	}
	ctx.JSON(http.StatusOK, catalog)
}

// loadForReport runs the shared rate check and bundle load of the
// report endpoints. Returns nil when the response is already written.
func (c *DatasetController) loadForReport(ctx *gin.Context) *dataset.Bundle {
	user := ctx.GetString(auth.ContextUser)
	if dec := c.limiter.Allow(user, "data_access", ctx.ClientIP()); !dec.Allowed {
		ctx.Header("Retry-After", strconv.Itoa(dec.RetryAfter))
		ctx.JSON(http.StatusTooManyRequests, model.NewResponse("Rate limit exceeded", gin.H{
			"reason":      dec.Reason,
			"retry_after": dec.RetryAfter,
		}))
		return nil
	}

	role := roles.GetOrGuest(ctx.GetString(auth.ContextRole))
	bundle, err := c.loader.Load(role)
	if err != nil {
		log.Error().Err(err).Str("role", role.Key).Msg("Failed to load datasets")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Datasets unavailable", nil))
		return nil
	}
	return bundle
}

// HandleEquityReport godoc
// @Summary      Per-district equity index
// @Description  Scores every health district 0-100 from bed ratio, staff ratio and UCI presence. Requires the hospitales and indicadores datasets in the caller's whitelist.
// @Tags         datasets
// @Produce      json
// @Security     Bearer
// @Success      200 {array} analytics.DistrictEquity
// @Failure      422 {object} model.Response "Required datasets outside the role whitelist"
// @Router       /api/v1/reports/equity [get]
func (c *DatasetController) HandleEquityReport(ctx *gin.Context) {
	bundle := c.loadForReport(ctx)
	if bundle == nil {
		return
	}
	report, err := analytics.EquityIndex(bundle)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, model.NewResponse(err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// HandleAccessibilityReport godoc
// @Summary      Accessibility gaps per municipality
// @Description  Aggregates travel time, cost and access score per origin municipality, classified Excelente/Buena/Regular/Deficiente, worst first.
// @Tags         datasets
// @Produce      json
// @Security     Bearer
// @Success      200 {array} analytics.MunicipalityAccess
// @Failure      422 {object} model.Response "Required datasets outside the role whitelist"
// @Router       /api/v1/reports/accessibility [get]
func (c *DatasetController) HandleAccessibilityReport(ctx *gin.Context) {
	bundle := c.loadForReport(ctx)
	if bundle == nil {
		return
	}
	report, err := analytics.AccessibilityGaps(bundle)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, model.NewResponse(err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// HandleServiceGapsReport godoc
// @Summary      Critical service coverage gaps
// @Description  Coverage of cardiology, neurology, oncology, adult UCI, hemodialysis and general emergency services across the sampled centers, with a priority per gap.
// @Tags         datasets
// @Produce      json
// @Security     Bearer
// @Success      200 {array} analytics.ServiceGap
// @Failure      422 {object} model.Response "Required datasets outside the role whitelist"
// @Router       /api/v1/reports/service-gaps [get]
func (c *DatasetController) HandleServiceGapsReport(ctx *gin.Context) {
	bundle := c.loadForReport(ctx)
	if bundle == nil {
		return
	}
	report, err := analytics.ServiceGaps(bundle)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, model.NewResponse(err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, report)
}
