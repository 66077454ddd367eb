package chart

import (
	"strings"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
)

// xPriority lists preferred x-axis columns per intent. The sentinel
// entries firstCategorical and firstColumn fall through to whatever
// the frame offers.
const (
	firstCategorical = "__first_categorical__"
	firstColumn      = "__first_column__"
)

var xPriority = map[intent.Tag][]string{
	intent.ExecutiveSummary:  {"tipo_centro", "distrito_sanitario", "municipio", firstCategorical, firstColumn},
	intent.StrategicPlanning: {"distrito_sanitario", "tipo_centro", "municipio", firstCategorical},
	intent.Equity:            {"distrito_sanitario", "municipio", firstCategorical},
	intent.Demographic:       {"municipio", firstCategorical},
	intent.Infrastructure:    {"nombre", "tipo_centro", firstCategorical},
}

var defaultXPriority = []string{firstCategorical, firstColumn}

var yPriority = []string{
	"camas_funcionamiento_2025",
	"personal_sanitario_2025",
	"poblacion_referencia_2025",
	"poblacion_2025",
	"ratio_medico_1000_hab",
}

var colorPrefixes = []string{"distrito", "tipo", "categoria", "nivel", "estado"}

// PickX selects an x-axis column for the given intent, or "" when
// the frame has no columns at all.
func PickX(frame *dataset.Frame, tag intent.Tag) string {
	priority, ok := xPriority[tag]
	if !ok {
		priority = defaultXPriority
	}
	for _, candidate := range priority {
		switch candidate {
		case firstCategorical:
			if cats := frame.CategoricalColumns(); len(cats) > 0 {
				return cats[0]
			}
		case firstColumn:
			if names := frame.ColumnNames(); len(names) > 0 {
				return names[0]
			}
		default:
			if frame.HasColumn(candidate) {
				return candidate
			}
		}
	}
	// Intents without the firstColumn sentinel still need an answer
	// on frames with no categorical columns.
	if cats := frame.CategoricalColumns(); len(cats) > 0 {
		return cats[0]
	}
	if names := frame.ColumnNames(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// PickY selects a numeric y-axis column, skipping coordinates, or ""
// when the frame has no usable numeric column.
func PickY(frame *dataset.Frame) string {
	for _, candidate := range yPriority {
		if frame.HasColumn(candidate) {
			return candidate
		}
	}
	for _, name := range frame.NumericColumns() {
		if name == "latitud" || name == "longitud" {
			continue
		}
		return name
	}
	return ""
}

// PickColor selects a grouping column, preferring names with the
// usual categorical prefixes. Columns in used are skipped.
func PickColor(frame *dataset.Frame, used ...string) string {
	cats := frame.CategoricalColumns()
	for _, prefix := range colorPrefixes {
		for _, name := range cats {
			if strings.HasPrefix(name, prefix) && !contains(used, name) {
				return name
			}
		}
	}
	for _, name := range cats {
		if !contains(used, name) {
			return name
		}
	}
	return ""
}

// PickSize selects the first numeric column not already in use.
func PickSize(frame *dataset.Frame, used ...string) string {
	for _, name := range frame.NumericColumns() {
		if name == "latitud" || name == "longitud" {
			continue
		}
		if !contains(used, name) {
			return name
		}
	}
	return ""
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
