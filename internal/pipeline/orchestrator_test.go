package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/audit"
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/inference"
	"copilot-salud-backend/internal/parser"
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/roles"
)

type stubClient struct {
	calls    atomic.Int32
	response string
	err      error
}

func (c *stubClient) Complete(ctx context.Context, _, _ string) (string, error) {
	c.calls.Add(1)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return c.response, c.err
}

type stubLoader struct {
	bundle *dataset.Bundle
	err    error
}

func (l *stubLoader) Load(roles.Role) (*dataset.Bundle, error) { return l.bundle, l.err }
func (l *stubLoader) Sweep()                                   {}

func testBundle() *dataset.Bundle {
	hospitales := dataset.NewFrame("hospitales",
		[]dataset.Column{
			{Name: "nombre", Type: dataset.TypeString},
			{Name: "tipo_centro", Type: dataset.TypeString},
			{Name: "camas_funcionamiento_2025", Type: dataset.TypeInt},
		},
		map[string][]interface{}{
			"nombre":                    {"Hospital Regional", "Hospital Clínico"},
			"tipo_centro":               {"Regional", "Universitario"},
			"camas_funcionamiento_2025": {int32(900), int32(700)},
		}, 2)
	return dataset.NewBundle([]*dataset.Frame{hospitales})
}

const wellFormedAnswer = `{
	"analysis_type": "infrastructure",
	"main_insight": "El Hospital Regional concentra la mayor capacidad",
	"data_query": "hospitales",
	"chart_config": {"type": "bar", "title": "Camas", "x_axis": "nombre", "y_axis": "camas_funcionamiento_2025"},
	"metrics": [{"name": "Camas", "value": 1600, "unit": "camas"}],
	"recommendations": ["Revisar la ocupación"],
	"explanation": "Comparación por centro"
}`

func newTestOrchestrator(t *testing.T, client inference.Client) (pipeline.Orchestrator, *pipeline.Metrics) {
	t.Helper()
	dir := t.TempDir()
	limiter := ratelimit.NewLimiter(filepath.Join(dir, "rate_limits.json"), audit.NewLogger(dir))
	metrics := pipeline.NewMetrics()
	pool := parser.NewPool(parser.New())
	t.Cleanup(pool.Stop)
	orch := pipeline.NewOrchestrator(
		inference.NewResultCache(),
		limiter,
		&stubLoader{bundle: testBundle()},
		client,
		pool,
		chart.NewSynthesizer(),
		audit.NewLogger(dir),
		metrics,
	)
	return orch, metrics
}

func TestRun_SuccessBindsChartToDataset(t *testing.T) {
	client := &stubClient{response: wellFormedAnswer}
	orch, metrics := newTestOrchestrator(t, client)

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "¿Qué hospital tiene más camas?",
		Role:   "analista",
		UserID: "analista_demo",
		Theme:  chart.ThemeLight,
	})

	require.Equal(t, pipeline.StatusSuccess, result.Status)
	require.NotNil(t, result.Analysis)
	require.NotNil(t, result.Chart)

	frame, ok := testBundle().Frame(result.Analysis.DataQuery)
	require.True(t, ok)
	assert.True(t, frame.HasColumn(result.Chart.Spec.XAxis))
	assert.True(t, frame.HasColumn(result.Chart.Spec.YAxis))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Success)
}

func TestRun_SecondCallHitsCache(t *testing.T) {
	client := &stubClient{response: wellFormedAnswer}
	orch, metrics := newTestOrchestrator(t, client)

	req := pipeline.Request{
		Query:  "Resumen de infraestructura hospitalaria",
		Role:   "gestor",
		UserID: "gestor_demo",
		Theme:  chart.ThemeDark,
	}

	first := orch.Run(context.Background(), req)
	require.Equal(t, pipeline.StatusSuccess, first.Status)

	// Trivially different phrasing still hits the cache.
	req.Query = "  resumen de INFRAESTRUCTURA hospitalaria "
	second := orch.Run(context.Background(), req)
	require.Equal(t, pipeline.StatusCacheHit, second.Status)
	require.NotNil(t, second.Chart)
	assert.Equal(t, first.Analysis.MainInsight, second.Analysis.MainInsight)

	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, int64(1), metrics.Snapshot().CacheHits)
}

func TestRun_RateLimitRejectsEleventhQuery(t *testing.T) {
	client := &stubClient{response: wellFormedAnswer}
	orch, _ := newTestOrchestrator(t, client)

	for i := 0; i < 10; i++ {
		result := orch.Run(context.Background(), pipeline.Request{
			Query:  fmt.Sprintf("consulta número %d sobre hospitales", i),
			Role:   "invitado",
			UserID: "invitado_demo",
		})
		require.Equal(t, pipeline.StatusSuccess, result.Status, "query %d", i)
	}

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "una consulta más",
		Role:   "invitado",
		UserID: "invitado_demo",
	})
	require.Equal(t, pipeline.StatusRejected, result.Status)
	assert.Equal(t, pipeline.RejectedRateLimited, result.Reason)
	assert.Equal(t, 60, result.RetryAfter)
	// The model was never contacted for the rejected query.
	assert.Equal(t, int32(10), client.calls.Load())
}

func TestRun_UpstreamFailure(t *testing.T) {
	client := &stubClient{err: errors.New("servicio no disponible")}
	orch, metrics := newTestOrchestrator(t, client)

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "consulta que fallará",
		Role:   "analista",
		UserID: "analista_demo",
	})
	require.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, pipeline.FailureUpstream, result.Reason)
	assert.Contains(t, result.Error, "servicio no disponible")
	assert.Equal(t, int64(1), metrics.Snapshot().Failed)
}

func TestRun_EmptyResponseIsParseFailure(t *testing.T) {
	client := &stubClient{response: "   "}
	orch, _ := newTestOrchestrator(t, client)

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "consulta con respuesta vacía",
		Role:   "analista",
		UserID: "analista_demo",
	})
	require.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, pipeline.FailureParse, result.Reason)
}

func TestRun_Cancelled(t *testing.T) {
	client := &stubClient{response: wellFormedAnswer}
	orch, metrics := newTestOrchestrator(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := orch.Run(ctx, pipeline.Request{
		Query:  "consulta cancelada",
		Role:   "analista",
		UserID: "analista_demo",
	})
	require.Equal(t, pipeline.StatusCancelled, result.Status)
	assert.Nil(t, result.Analysis)
	assert.Equal(t, int64(1), metrics.Snapshot().Cancelled)
}

func TestRun_MalformedAnswerStillSucceeds(t *testing.T) {
	client := &stubClient{response: "El sistema sanitario de Málaga presenta una distribución desigual de recursos."}
	orch, _ := newTestOrchestrator(t, client)

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "analiza la equidad",
		Role:   "gestor",
		UserID: "gestor_demo",
	})
	require.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, "equity", result.Analysis.AnalysisType)
	assert.Contains(t, result.Analysis.MainInsight, "distribución desigual")
	require.NotNil(t, result.Chart)
	assert.Equal(t, "bar", result.Chart.Spec.Type)
}

func TestRun_UnknownChartTypeIsRewrittenWithNote(t *testing.T) {
	answer := `{
		"analysis_type": "infrastructure",
		"main_insight": "Capacidad por centro",
		"data_query": "hospitales",
		"chart_config": {"type": "sunburst", "x_axis": "nombre", "y_axis": "camas_funcionamiento_2025"}
	}`
	client := &stubClient{response: answer}
	orch, _ := newTestOrchestrator(t, client)

	result := orch.Run(context.Background(), pipeline.Request{
		Query:  "¿Qué hospital tiene más camas?",
		Role:   "gestor",
		UserID: "gestor_demo",
	})

	require.Equal(t, pipeline.StatusSuccess, result.Status)
	require.NotNil(t, result.Chart)
	assert.Equal(t, "bar", result.Chart.Spec.Type)
	// The degradation must leave a trace the caller can see.
	require.NotEmpty(t, result.Chart.Notes)
	assert.Contains(t, result.Chart.Notes[0], "sunburst")
}

func TestRun_ConcurrentQueriesShareParsePool(t *testing.T) {
	client := &stubClient{response: wellFormedAnswer}
	orch, metrics := newTestOrchestrator(t, client)

	var wg sync.WaitGroup
	results := make([]pipeline.Result, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = orch.Run(context.Background(), pipeline.Request{
				Query:  fmt.Sprintf("consulta de capacidad %d", i),
				Role:   "gestor",
				UserID: fmt.Sprintf("usuario_%d", i),
			})
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		require.Equal(t, pipeline.StatusSuccess, result.Status)
		require.NotNil(t, result.Analysis)
	}
	assert.Equal(t, int64(8), metrics.Snapshot().Success)
}
