package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/analytics"
	"copilot-salud-backend/internal/dataset"
)

func fullBundle() *dataset.Bundle {
	hospitales := dataset.NewFrame("hospitales",
		[]dataset.Column{
			{Name: "nombre", Type: dataset.TypeString},
			{Name: "distrito_sanitario", Type: dataset.TypeString},
			{Name: "camas_funcionamiento_2025", Type: dataset.TypeInt},
			{Name: "personal_sanitario_2025", Type: dataset.TypeInt},
			{Name: "uci_camas", Type: dataset.TypeInt},
		},
		map[string][]interface{}{
			"nombre":                    {"Regional", "Clínico", "Axarquía"},
			"distrito_sanitario":        {"Málaga", "Málaga", "Axarquía"},
			"camas_funcionamiento_2025": {int32(1000), int32(700), int32(250)},
			"personal_sanitario_2025":   {int32(6000), int32(4000), int32(1000)},
			"uci_camas":                 {int32(64), int32(40), int32(0)},
		}, 3)
	indicadores := dataset.NewFrame("indicadores",
		[]dataset.Column{
			{Name: "distrito_sanitario", Type: dataset.TypeString},
			{Name: "poblacion_total_2025", Type: dataset.TypeInt},
		},
		map[string][]interface{}{
			"distrito_sanitario":   {"Málaga", "Axarquía"},
			"poblacion_total_2025": {int32(1000000), int32(160000)},
		}, 2)
	accesibilidad := dataset.NewFrame("accesibilidad",
		[]dataset.Column{
			{Name: "municipio_origen", Type: dataset.TypeString},
			{Name: "hospital_destino", Type: dataset.TypeString},
			{Name: "tiempo_coche_minutos", Type: dataset.TypeFloat},
			{Name: "coste_transporte_euros", Type: dataset.TypeFloat},
			{Name: "accesibilidad_score", Type: dataset.TypeFloat},
		},
		map[string][]interface{}{
			"municipio_origen":       {"Málaga", "Málaga", "Ronda"},
			"hospital_destino":       {"Regional", "Clínico", "Regional"},
			"tiempo_coche_minutos":   {float32(12.0), float32(18.0), float32(92.0)},
			"coste_transporte_euros": {float32(1.4), float32(2.0), float32(11.6)},
			"accesibilidad_score":    {float32(9.0), float32(8.0), float32(3.5)},
		}, 3)
	servicios := dataset.NewFrame("servicios",
		[]dataset.Column{
			{Name: "centro_sanitario", Type: dataset.TypeString},
			{Name: "cardiologia", Type: dataset.TypeBool},
			{Name: "hemodialisis", Type: dataset.TypeBool},
			{Name: "urgencias_generales", Type: dataset.TypeBool},
		},
		map[string][]interface{}{
			"centro_sanitario":    {"Regional", "Clínico", "Axarquía"},
			"cardiologia":         {true, true, false},
			"hemodialisis":        {true, false, false},
			"urgencias_generales": {true, true, true},
		}, 3)
	return dataset.NewBundle([]*dataset.Frame{hospitales, indicadores, accesibilidad, servicios})
}

func TestEquityIndexScoresDistricts(t *testing.T) {
	report, err := analytics.EquityIndex(fullBundle())
	require.NoError(t, err)
	require.Len(t, report, 2)

	byDistrict := make(map[string]analytics.DistrictEquity)
	for _, d := range report {
		byDistrict[d.Distrito] = d
	}

	malaga := byDistrict["Málaga"]
	assert.Equal(t, 1700.0, malaga.CamasTotales)
	assert.InDelta(t, 1.7, malaga.RatioCamas1000Hab, 0.001)
	assert.InDelta(t, 10.0, malaga.RatioPersonal1000, 0.001)

	axarquia := byDistrict["Axarquía"]
	assert.InDelta(t, 1.5625, axarquia.RatioCamas1000Hab, 0.001)

	// Málaga leads both ratios and has UCI beds: full score.
	assert.InDelta(t, 100.0, malaga.ScoreEquidad, 0.001)
	// Axarquía has no UCI, so it caps at 80 even before ratio penalties.
	assert.Less(t, axarquia.ScoreEquidad, 80.0)
	assert.Greater(t, axarquia.ScoreEquidad, 0.0)
}

func TestAccessibilityGapsClassifiesAndSorts(t *testing.T) {
	report, err := analytics.AccessibilityGaps(fullBundle())
	require.NoError(t, err)
	require.Len(t, report, 2)

	// Worst score first.
	assert.Equal(t, "Ronda", report[0].Municipio)
	assert.Equal(t, "Deficiente", report[0].Nivel)
	assert.True(t, report[0].RequiereAtencion)

	malaga := report[1]
	assert.Equal(t, "Málaga", malaga.Municipio)
	assert.InDelta(t, 15.0, malaga.TiempoMedio, 0.01)
	assert.InDelta(t, 12.0, malaga.TiempoMinimo, 0.01)
	assert.InDelta(t, 8.5, malaga.ScoreAccesibilidad, 0.01)
	assert.Equal(t, "Excelente", malaga.Nivel)
	assert.False(t, malaga.RequiereAtencion)
}

func TestServiceGapsPrioritizesCoverage(t *testing.T) {
	report, err := analytics.ServiceGaps(fullBundle())
	require.NoError(t, err)
	require.Len(t, report, 3)

	byService := make(map[string]analytics.ServiceGap)
	for _, g := range report {
		byService[g.Servicio] = g
	}

	assert.Equal(t, "Media", byService["cardiologia"].Prioridad)
	assert.InDelta(t, 66.66, byService["cardiologia"].CoberturaPct, 0.1)

	// Two of three centers lack hemodialysis: above the 60% threshold.
	assert.Equal(t, "Alta", byService["hemodialisis"].Prioridad)
	assert.Equal(t, "Baja", byService["urgencias_generales"].Prioridad)
}

func TestReportsDegradeWithoutRequiredDatasets(t *testing.T) {
	empty := dataset.NewBundle(nil)

	_, err := analytics.EquityIndex(empty)
	assert.ErrorIs(t, err, analytics.ErrDatasetUnavailable)
	_, err = analytics.AccessibilityGaps(empty)
	assert.ErrorIs(t, err, analytics.ErrDatasetUnavailable)
	_, err = analytics.ServiceGaps(empty)
	assert.ErrorIs(t, err, analytics.ErrDatasetUnavailable)
}
