package parser

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/roles"
)

// ErrEmptyResponse is the only parse failure: nothing at all came
// back from the model. Every non-empty string maps to a result, at
// worst through the fallback path.
var ErrEmptyResponse = errors.New("empty model response")

const fallbackExcerptLen = 200

// Scrub patterns for aggregate claims the model tends to fabricate.
// Deliberately narrow: broader patterns mangle legitimate answers.
var scrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\.\d+\s*minutos?\s*de\s*acceso`),
	regexp.MustCompile(`\d{1,3}(?:,\d{3})*\s*habitantes?\s*en\s*total`),
}

const scrubReplacement = "[Datos no disponibles]"

// payload mirrors the JSON contract the model is instructed to emit.
type payload struct {
	AnalysisType     string          `json:"analysis_type"`
	MainInsight      string          `json:"main_insight"`
	DataQuery        string          `json:"data_query"`
	ChartConfig      model.ChartSpec `json:"chart_config"`
	Metrics          []model.Metric  `json:"metrics"`
	Recommendations  []string        `json:"recommendations"`
	DetailedFindings []string        `json:"detailed_findings"`
	Explanation      string          `json:"explanation"`
}

// Parser turns raw model text into a validated AnalysisResult bound
// to the active dataset bundle.
type Parser interface {
	Parse(raw string, bundle *dataset.Bundle, it intent.Intent, role roles.Role) (model.AnalysisResult, error)
}

type responseParser struct {
	clock func() time.Time
}

// Option configures the parser.
type Option func(*responseParser)

// WithClock overrides the result timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *responseParser) { p.clock = clock }
}

// New builds the default parser.
func New(opts ...Option) Parser {
	p := &responseParser{clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *responseParser) Parse(raw string, bundle *dataset.Bundle, it intent.Intent, role roles.Role) (model.AnalysisResult, error) {
	if strings.TrimSpace(raw) == "" {
		return model.AnalysisResult{}, ErrEmptyResponse
	}

	var body payload
	extracted := false
	if block, ok := extractJSONBlock(raw); ok {
		if err := json.Unmarshal([]byte(block), &body); err == nil {
			extracted = true
		}
	}
	if !extracted {
		log.Warn().
			Str("intent", string(it.Tag)).
			Int("raw_len", len(raw)).
			Msg("No structured block in model response, using fallback")
		body = fallbackPayload(raw, it)
	}

	result := model.AnalysisResult{
		AnalysisType:     string(intent.Normalize(body.AnalysisType, it.Tag)),
		MainInsight:      body.MainInsight,
		ChartConfig:      body.ChartConfig,
		Metrics:          body.Metrics,
		Recommendations:  body.Recommendations,
		DetailedFindings: body.DetailedFindings,
		Explanation:      body.Explanation,
		Timestamp:        p.clock(),
		Role:             role.Key,
	}
	if result.MainInsight == "" {
		result.MainInsight = excerpt(raw)
	}
	if result.Explanation == "" {
		result.Explanation = result.MainInsight
	}
	if result.Metrics == nil {
		result.Metrics = []model.Metric{}
	}
	if result.DetailedFindings == nil {
		result.DetailedFindings = []string{}
	}

	result.DataQuery = resolveDataQuery(body.DataQuery, bundle)
	if frame, ok := bundle.Frame(result.DataQuery); ok {
		chart.Repair(&result.ChartConfig, frame, it.Tag)
	}

	if len(result.Metrics) > model.MaxMetrics {
		result.Metrics = result.Metrics[:model.MaxMetrics]
	}
	if len(result.Recommendations) > model.MaxRecommendations {
		result.Recommendations = result.Recommendations[:model.MaxRecommendations]
	}
	if len(result.Recommendations) == 0 {
		result.Recommendations = defaultRecommendations(role)
	}

	scrub(&result)
	return result, nil
}

// resolveDataQuery maps the reported dataset reference onto a key of
// the bundle, tolerating pandas-style expressions like
// "data['hospitales'].head()".
func resolveDataQuery(reported string, bundle *dataset.Bundle) string {
	cleaned := strings.ToLower(strings.TrimSpace(reported))
	for _, key := range bundle.Keys() {
		if cleaned == key || strings.Contains(cleaned, "'"+key+"'") || strings.Contains(cleaned, `"`+key+`"`) {
			return key
		}
	}
	return bundle.Primary()
}

func fallbackPayload(raw string, it intent.Intent) payload {
	return payload{
		AnalysisType: string(it.Tag),
		MainInsight:  excerpt(raw),
		ChartConfig:  model.ChartSpec{Type: "bar", Title: "Análisis General"},
	}
}

func excerpt(raw string) string {
	text := strings.TrimSpace(raw)
	runes := []rune(text)
	if len(runes) <= fallbackExcerptLen {
		return text
	}
	return string(runes[:fallbackExcerptLen]) + "..."
}

func defaultRecommendations(role roles.Role) []string {
	switch role.Key {
	case "admin":
		return []string{"Revisar los indicadores operativos del sistema sanitario"}
	case "gestor":
		return []string{"Contrastar el resultado con los objetivos de planificación vigentes"}
	case "analista":
		return []string{"Ampliar el análisis con series históricas para validar la tendencia"}
	default:
		return []string{"Consultar con el equipo sanitario para interpretar estos datos"}
	}
}

func scrub(result *model.AnalysisResult) {
	result.MainInsight = scrubText(result.MainInsight)
	result.Explanation = scrubText(result.Explanation)
	for i, finding := range result.DetailedFindings {
		result.DetailedFindings[i] = scrubText(finding)
	}
	for i, rec := range result.Recommendations {
		result.Recommendations[i] = scrubText(rec)
	}
}

func scrubText(text string) string {
	for _, pattern := range scrubPatterns {
		text = pattern.ReplaceAllString(text, scrubReplacement)
	}
	return text
}

// extractJSONBlock returns the first balanced-brace region of text
// that is a plausible JSON object. The scan is string-aware so braces
// inside quoted values do not unbalance the count.
func extractJSONBlock(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		if end, ok := matchBraces(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

func matchBraces(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
