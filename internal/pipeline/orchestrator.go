package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/audit"
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/inference"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/parser"
	"copilot-salud-backend/internal/prompt"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/roles"
)

// Request identifies one query run through the pipeline.
type Request struct {
	Query  string
	Role   string
	UserID string
	IP     string
	Theme  chart.Theme
}

// Orchestrator wires the full answer pipeline: cache, rate limits,
// datasets, intent, prompt, inference, parsing and chart synthesis.
type Orchestrator interface {
	Run(ctx context.Context, req Request) Result
}

type orchestrator struct {
	cache       *inference.ResultCache
	limiter     *ratelimit.Limiter
	loader      dataset.Loader
	client      inference.Client
	parsePool   *parser.Pool
	synthesizer chart.Synthesizer
	auditor     *audit.Logger
	metrics     *Metrics
}

// NewOrchestrator assembles the pipeline from its stages.
func NewOrchestrator(
	cache *inference.ResultCache,
	limiter *ratelimit.Limiter,
	loader dataset.Loader,
	client inference.Client,
	parsePool *parser.Pool,
	synthesizer chart.Synthesizer,
	auditor *audit.Logger,
	metrics *Metrics,
) Orchestrator {
	return &orchestrator{
		cache:       cache,
		limiter:     limiter,
		loader:      loader,
		client:      client,
		parsePool:   parsePool,
		synthesizer: synthesizer,
		auditor:     auditor,
		metrics:     metrics,
	}
}

func (o *orchestrator) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	result := o.run(ctx, req)
	result.Duration = time.Since(start)
	o.metrics.Observe(result.Status, result.Duration)

	o.auditor.Security("ai_query_completed", map[string]interface{}{
		"user":        req.UserID,
		"role":        req.Role,
		"status":      string(result.Status),
		"reason":      result.Reason,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result
}

func (o *orchestrator) run(ctx context.Context, req Request) Result {
	role := roles.GetOrGuest(req.Role)
	if !role.Has(roles.CapAIAnalysis) {
		return rejected(RejectedPermission, 0)
	}

	it := intent.Classify(req.Query)
	key := o.cache.Key(role.Key, req.Query)

	if cached, ok := o.cache.Get(key); ok {
		log.Debug().Str("user", req.UserID).Str("role", role.Key).Msg("Answer served from cache")
		figure, ok := o.synthesizeFor(cached, role, it, req.Theme)
		if ok {
			return cacheHit(cached, figure, it)
		}
	}

	if dec := o.limiter.Allow(req.UserID, "ai_query", req.IP); !dec.Allowed {
		return rejected(RejectedRateLimited, dec.RetryAfter)
	}
	dataDec := o.limiter.Allow(req.UserID, "data_access", req.IP)
	if !dataDec.Allowed {
		return rejected(RejectedRateLimited, dataDec.RetryAfter)
	}

	bundle, err := o.loader.Load(role)
	if err != nil {
		return failed(FailureDataset, err)
	}
	if ctx.Err() != nil {
		return cancelled()
	}

	pctx := prompt.BuildContext(bundle, role, it, req.Query)
	systemText, userText := prompt.Build(role, pctx, req.Query)

	raw, err := o.client.Complete(ctx, systemText, userText)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cancelled()
		}
		log.Error().Err(err).Str("user", req.UserID).Msg("Inference failed")
		return failed(FailureUpstream, err)
	}

	job := o.parsePool.Submit(&parser.Job{Raw: raw, Bundle: bundle, Intent: it, Role: role})
	analysis, err := job.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cancelled()
		}
		return failed(FailureParse, err)
	}
	if ctx.Err() != nil {
		return cancelled()
	}

	figure := o.synthesize(analysis, bundle, it, req.Theme)
	o.cache.Put(key, analysis)

	result := success(analysis, figure, it)
	result.Warning = dataDec.Warning
	return result
}

// synthesizeFor rebuilds the figure for a cached analysis. Figures
// are not cached: the theme is caller-chosen per request, so only the
// AnalysisResult is stored and the chart is drawn again on each hit.
func (o *orchestrator) synthesizeFor(cached model.AnalysisResult, role roles.Role, it intent.Intent, theme chart.Theme) (chart.Result, bool) {
	bundle, err := o.loader.Load(role)
	if err != nil {
		log.Warn().Err(err).Str("role", role.Key).Msg("Cached answer dropped, datasets unavailable")
		return chart.Result{}, false
	}
	return o.synthesize(cached, bundle, it, theme), true
}

func (o *orchestrator) synthesize(analysis model.AnalysisResult, bundle *dataset.Bundle, it intent.Intent, theme chart.Theme) chart.Result {
	frame, ok := bundle.Frame(analysis.DataQuery)
	if !ok {
		frame, _ = bundle.Frame(bundle.Primary())
	}
	if frame == nil {
		frame = dataset.NewFrame(analysis.DataQuery, nil, map[string][]interface{}{}, 0)
	}
	return o.synthesizer.Synthesize(analysis.ChartConfig, frame, it.Tag, theme)
}
