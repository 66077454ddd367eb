package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/parser"
	"copilot-salud-backend/internal/roles"
)

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
	indicadores := dataset.NewFrame("indicadores",
		[]dataset.Column{
			{Name: "distrito_sanitario", Type: dataset.TypeString},
			{Name: "ratio_medico_1000_hab", Type: dataset.TypeFloat},
			{Name: "esperanza_vida_2023", Type: dataset.TypeFloat},
		},
		map[string][]interface{}{
			"distrito_sanitario":    {"Málaga", "Axarquía"},
			"ratio_medico_1000_hab": {float32(3.1), float32(2.2)},
			"esperanza_vida_2023":   {float32(82.4), float32(81.9)},
		}, 2)
	return dataset.NewBundle([]*dataset.Frame{hospitales, indicadores})
}

func analista() roles.Role {
	return roles.GetOrGuest("analista")
}

func TestParse_StructuredBlockInsideProse(t *testing.T) {
	raw := `Claro, aquí tienes el análisis solicitado:

	{
		"analysis_type": "infrastructure",
		"main_insight": "El Hospital Regional concentra la mayor capacidad con {900} camas",
		"data_query": "hospitales",
		"chart_config": {"type": "bar", "title": "Camas", "x_axis": "nombre", "y_axis": "camas_funcionamiento_2025"},
		"metrics": [{"name": "Camas totales", "value": 1600, "unit": "camas"}],
		"recommendations": ["Revisar la ocupación de camas"],
		"explanation": "Comparación de camas en funcionamiento por centro"
	}

	Espero que te sirva.`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Infrastructure}, analista())
	require.NoError(t, err)
	assert.Equal(t, "infrastructure", result.AnalysisType)
	assert.Equal(t, "hospitales", result.DataQuery)
	assert.Equal(t, "nombre", result.ChartConfig.XAxis)
	assert.Equal(t, "camas_funcionamiento_2025", result.ChartConfig.YAxis)
	assert.Contains(t, result.MainInsight, "{900} camas")
	require.Len(t, result.Metrics, 1)
	assert.Equal(t, "analista", result.Role)
}

func TestParse_MissingKeysGetDefaults(t *testing.T) {
	raw := `{"analysis_type": "equity", "main_insight": "Desigualdad entre distritos", "data_query": "indicadores", "chart_config": {"type": "bar"}}`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Equity}, analista())
	require.NoError(t, err)
	assert.Empty(t, result.Metrics)
	assert.Empty(t, result.DetailedFindings)
	assert.Equal(t, result.MainInsight, result.Explanation)
	// Empty recommendations are padded with a role default.
	require.Len(t, result.Recommendations, 1)
	assert.NotEmpty(t, result.Recommendations[0])
}

func TestParse_UnknownAnalysisTypeUsesIntent(t *testing.T) {
	raw := `{"analysis_type": "galactic", "main_insight": "x", "data_query": "hospitales", "chart_config": {"type": "bar"}}`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Capacity}, analista())
	require.NoError(t, err)
	assert.Equal(t, "capacity", result.AnalysisType)
}

func TestParse_InvalidDataQueryFallsBackToPrimary(t *testing.T) {
	tests := []struct {
		name      string
		dataQuery string
		expected  string
	}{
		{"unknown dataset", "presupuestos", "hospitales"},
		{"pandas expression", "data['indicadores'].head()", "indicadores"},
		{"empty reference", "", "hospitales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"analysis_type": "general", "main_insight": "x", "data_query": "` + tt.dataQuery + `", "chart_config": {"type": "bar"}}`
			result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.General}, analista())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.DataQuery)
		})
	}
}

func TestParse_AxisRepair(t *testing.T) {
	raw := `{
		"analysis_type": "equity",
		"main_insight": "Ratio de médicos desigual",
		"data_query": "indicadores",
		"chart_config": {"type": "bar", "x_axis": "distrito_sanitario", "y_axis": "latitud"}
	}`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Equity}, analista())
	require.NoError(t, err)
	assert.Equal(t, "distrito_sanitario", result.ChartConfig.XAxis)
	assert.Equal(t, "ratio_medico_1000_hab", result.ChartConfig.YAxis)
}

func TestParse_TruncatesMetricsAndRecommendations(t *testing.T) {
	raw := `{
		"analysis_type": "general",
		"main_insight": "x",
		"data_query": "hospitales",
		"chart_config": {"type": "bar"},
		"metrics": [
			{"name": "m1", "value": 1, "unit": ""},
			{"name": "m2", "value": 2, "unit": ""},
			{"name": "m3", "value": 3, "unit": ""},
			{"name": "m4", "value": 4, "unit": ""},
			{"name": "m5", "value": 5, "unit": ""},
			{"name": "m6", "value": 6, "unit": ""}
		],
		"recommendations": ["r1", "r2", "r3", "r4", "r5"]
	}`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.General}, analista())
	require.NoError(t, err)
	assert.Len(t, result.Metrics, 4)
	assert.Len(t, result.Recommendations, 3)
}

func TestParse_FallbackHeuristic(t *testing.T) {
	raw := "Lo siento, no puedo generar un análisis estructurado, pero " +
		strings.Repeat("los datos sugieren una tendencia estable. ", 10)

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Demographic}, analista())
	require.NoError(t, err)
	assert.Equal(t, "demographic", result.AnalysisType)
	assert.LessOrEqual(t, len([]rune(result.MainInsight)), 203)
	assert.True(t, strings.HasSuffix(result.MainInsight, "..."))
	// The synthesized chart spec is still bound to real columns.
	assert.Equal(t, "hospitales", result.DataQuery)
	assert.Equal(t, "nombre", result.ChartConfig.XAxis)
	assert.Equal(t, "camas_funcionamiento_2025", result.ChartConfig.YAxis)
}

func TestParse_ScrubsFabricatedAggregates(t *testing.T) {
	raw := `{
		"analysis_type": "accessibility",
		"main_insight": "El tiempo medio es 23.4 minutos de acceso para la población",
		"data_query": "hospitales",
		"chart_config": {"type": "bar"},
		"explanation": "La provincia suma 1,700,000 habitantes en total según el modelo"
	}`

	result, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.Accessibility}, analista())
	require.NoError(t, err)
	assert.Contains(t, result.MainInsight, "[Datos no disponibles]")
	assert.NotContains(t, result.MainInsight, "23.4 minutos")
	assert.Contains(t, result.Explanation, "[Datos no disponibles]")
	assert.NotContains(t, result.Explanation, "habitantes en total")
}

func TestParse_EmptyResponse(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := parser.New().Parse(raw, testBundle(), intent.Intent{Tag: intent.General}, analista())
		assert.ErrorIs(t, err, parser.ErrEmptyResponse)
	}
}

func TestPool_ParsesConcurrently(t *testing.T) {
	pool := parser.NewPool(parser.New())
	defer pool.Stop()

	jobs := make([]*parser.Job, 0, 6)
	for i := 0; i < 6; i++ {
		jobs = append(jobs, pool.Submit(&parser.Job{
			Raw:    `{"analysis_type": "general", "main_insight": "ok", "data_query": "hospitales", "chart_config": {"type": "bar"}}`,
			Bundle: testBundle(),
			Intent: intent.Intent{Tag: intent.General},
			Role:   analista(),
		}))
	}
	for _, job := range jobs {
		result, err := job.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", result.MainInsight)
	}
}
