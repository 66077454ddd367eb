package intent

import "strings"

// Tag is the typed category of a user question.
type Tag string

// The closed intent set. Only the tags in scanOrder are produced by the
// classifier; the remaining tags are accepted when normalizing the
// analysis_type reported by the model.
const (
	Geographic        Tag = "geographic"
	Financial         Tag = "financial"
	Capacity          Tag = "capacity"
	Personnel         Tag = "personnel"
	Services          Tag = "services"
	Accessibility     Tag = "accessibility"
	Demographics      Tag = "demographics"
	Quality           Tag = "quality"
	Comparison        Tag = "comparison"
	Optimization      Tag = "optimization"
	Planning          Tag = "planning"
	Urgent            Tag = "urgent"
	UserManagement    Tag = "user_management"
	StrategicPlanning Tag = "strategic_planning"
	ExecutiveSummary  Tag = "executive_summary"
	Equity            Tag = "equity"
	Infrastructure    Tag = "infrastructure"
	Demographic       Tag = "demographic"
	Metrics           Tag = "metrics"
	Visualization     Tag = "visualization"
	Statistical       Tag = "statistical"
	Predictive        Tag = "predictive"
	Recommendation    Tag = "recommendation"
	General           Tag = "general"
)

// Entity is a literal mention found in the query.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Intent is the classification of one query. Discarded once the
// pipeline completes.
type Intent struct {
	Tag        Tag      `json:"tag"`
	Entities   []Entity `json:"entities"`
	Complexity string   `json:"complexity"`
}

type keywordGroup struct {
	tag      Tag
	keywords []string
}

// scanOrder is the fixed priority order of keyword groups. It matters
// because keywords overlap: "planificación" must bind to
// strategic_planning before anything weaker down the list.
var scanOrder = []keywordGroup{
	{UserManagement, []string{"gestión de usuarios", "usuarios", "permisos", "roles", "administración de usuarios"}},
	{StrategicPlanning, []string{"planificación estratégica", "planificación", "estrategia", "objetivos estratégicos", "plan de acción", "metas"}},
	{ExecutiveSummary, []string{"resumen ejecutivo", "informe ejecutivo", "dashboard ejecutivo"}},
	{Equity, []string{"equidad", "desigualdad", "territorial"}},
	{Demographic, []string{"demografía", "demográfico", "población", "habitantes", "envejecimiento", "crecimiento"}},
	{Infrastructure, []string{"camas", "hospital", "infraestructura", "centros", "quirófano", "ocupación"}},
	{Services, []string{"servicio", "especialidad", "cardiología", "neurología", "oncología", "pediatría", "cobertura"}},
	{Accessibility, []string{"accesibilidad", "acceso", "tiempo", "distancia", "transporte", "ruta", "llegar"}},
	{Metrics, []string{"indicador", "métrica", "ratio", "kpi"}},
	{Visualization, []string{"gráfico", "visualiza", "chart", "plot", "diagrama"}},
	{Statistical, []string{"estadística", "correlación", "regresión"}},
	{Predictive, []string{"predicción", "tendencia", "proyección", "forecast"}},
	{Recommendation, []string{"recomendación", "recomienda", "sugerencia", "optimizar", "mejorar"}},
}

// entityVocab is the closed vocabulary of literal entity mentions.
var entityVocab = []struct {
	entityType string
	values     []string
}{
	{"hospitals", []string{"hospital", "centro", "clínico", "regional", "costa del sol", "axarquía"}},
	{"municipalities", []string{"málaga", "marbella", "vélez", "antequera", "ronda", "estepona"}},
	{"specialties", []string{"cardiología", "neurología", "oncología", "pediatría", "ginecología"}},
	{"districts", []string{"málaga", "costa del sol", "axarquía", "norte", "serranía", "guadalhorce"}},
}

// Classify maps a query to an intent with a deterministic lexical
// scan. No ML, no randomness: classify(q) == classify(q).
func Classify(query string) Intent {
	lower := strings.ToLower(query)

	tag := General
	for _, group := range scanOrder {
		if containsAny(lower, group.keywords) {
			tag = group.tag
			break
		}
	}

	var entities []Entity
	for _, vocab := range entityVocab {
		for _, value := range vocab.values {
			if strings.Contains(lower, value) {
				entities = append(entities, Entity{Type: vocab.entityType, Value: value})
			}
		}
	}

	complexity := "low"
	switch {
	case len(entities) >= 3:
		complexity = "high"
	case len(entities) >= 1:
		complexity = "medium"
	}

	return Intent{Tag: tag, Entities: entities, Complexity: complexity}
}

// Normalize maps a reported analysis_type onto the closed set,
// substituting the classified tag for unknown values.
func Normalize(reported string, fallback Tag) Tag {
	candidate := Tag(strings.ToLower(strings.TrimSpace(reported)))
	for _, known := range allTags {
		if candidate == known {
			return known
		}
	}
	return fallback
}

var allTags = []Tag{
	Geographic, Financial, Capacity, Personnel, Services, Accessibility,
	Demographics, Quality, Comparison, Optimization, Planning, Urgent,
	UserManagement, StrategicPlanning, ExecutiveSummary, Equity,
	Infrastructure, Demographic, Metrics, Visualization, Statistical,
	Predictive, Recommendation, General,
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
