package prompt

import (
	"fmt"
	"strings"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/roles"
)

// maxSliceRows caps the intent-specific projection.
const maxSliceRows = 50

// notAvailable is emitted wherever a referenced column is absent. The
// builder never fabricates a numeric value.
const notAvailable = "n/a"

// Context is the request-scoped textual context handed to the prompt
// assembler. Not persisted.
type Context struct {
	Summary    string
	Slice      string
	PersonaKey string
}

// slicePlan names the dataset and columns projected for one intent.
type slicePlan struct {
	dataset string
	title   string
	columns []string
}

var slicePlans = map[intent.Tag]slicePlan{
	intent.Geographic:        {"hospitales", "DATOS GEOGRÁFICOS", []string{"municipio", "camas_funcionamiento_2025", "personal_sanitario_2025"}},
	intent.Financial:         {"indicadores", "DATOS FINANCIEROS", []string{"distrito_sanitario", "gasto_sanitario_per_capita"}},
	intent.Capacity:          {"hospitales", "DATOS CAPACIDAD", []string{"nombre", "camas_funcionamiento_2025", "uci_camas"}},
	intent.Personnel:         {"hospitales", "DATOS PERSONAL", []string{"nombre", "personal_sanitario_2025"}},
	intent.Services:          {"servicios", "DATOS SERVICIOS", []string{"centro_sanitario", "cardiologia", "neurologia", "oncologia_medica", "pediatria"}},
	intent.Accessibility:     {"accesibilidad", "DATOS ACCESIBILIDAD", []string{"municipio_origen", "hospital_destino", "tiempo_coche_minutos", "accesibilidad_score"}},
	intent.Demographic:       {"demografia", "DATOS DEMOGRÁFICOS", []string{"municipio", "poblacion_2025", "crecimiento_2024_2025", "indice_envejecimiento_2025"}},
	intent.Demographics:      {"demografia", "DATOS DEMOGRÁFICOS", []string{"municipio", "poblacion_2025", "crecimiento_2024_2025", "indice_envejecimiento_2025"}},
	intent.Quality:           {"indicadores", "DATOS CALIDAD", []string{"distrito_sanitario", "esperanza_vida_2023", "mortalidad_infantil_x1000", "cobertura_vacunal_infantil_pct"}},
	intent.Equity:            {"indicadores", "DATOS EQUIDAD", []string{"distrito_sanitario", "poblacion_total_2025", "ratio_medico_1000_hab"}},
	intent.Infrastructure:    {"hospitales", "DATOS INFRAESTRUCTURA", []string{"nombre", "tipo_centro", "camas_funcionamiento_2025", "personal_sanitario_2025"}},
	intent.ExecutiveSummary:  {"hospitales", "DATOS SISTEMA", []string{"nombre", "tipo_centro", "distrito_sanitario", "camas_funcionamiento_2025"}},
	intent.StrategicPlanning: {"indicadores", "DATOS PLANIFICACIÓN", []string{"distrito_sanitario", "poblacion_total_2025", "gasto_sanitario_per_capita"}},
	intent.Metrics:           {"indicadores", "DATOS INDICADORES", []string{"distrito_sanitario", "ratio_medico_1000_hab", "esperanza_vida_2023"}},
}

// BuildContext renders the deterministic dataset context for a query:
// a general summary of every whitelisted dataset plus a focused slice
// for the classified intent. Datasets outside the role whitelist never
// reach the returned text.
func BuildContext(bundle *dataset.Bundle, role roles.Role, it intent.Intent, query string) Context {
	var b strings.Builder
	b.WriteString("DATASETS SISTEMA SANITARIO MÁLAGA 2025:\n")

	for _, key := range bundle.Keys() {
		frame, _ := bundle.Frame(key)
		writeDatasetSummary(&b, key, frame)
	}

	return Context{
		Summary:    b.String(),
		Slice:      buildSlice(bundle, it, query),
		PersonaKey: role.PersonaKey,
	}
}

func writeDatasetSummary(b *strings.Builder, key string, frame *dataset.Frame) {
	fmt.Fprintf(b, "\n%s (%d filas):\n", strings.ToUpper(key), frame.NumRows())
	fmt.Fprintf(b, "  Columnas: %s\n", strings.Join(frame.ColumnNames(), ", "))

	switch key {
	case "hospitales":
		fmt.Fprintf(b, "  Total camas: %s camas\n", sumString(frame, "camas_funcionamiento_2025"))
		fmt.Fprintf(b, "  Personal sanitario: %s profesionales\n", sumString(frame, "personal_sanitario_2025"))
	case "demografia":
		fmt.Fprintf(b, "  Población total 2025: %s habitantes\n", sumString(frame, "poblacion_2025"))
		fmt.Fprintf(b, "  Crecimiento medio: %s habitantes\n", meanString(frame, "crecimiento_2024_2025"))
	case "servicios":
		fmt.Fprintf(b, "  Centros con cardiología: %s\n", countString(frame, "cardiologia"))
		fmt.Fprintf(b, "  Centros con UCI: %s\n", countString(frame, "uci_adultos"))
	case "accesibilidad":
		fmt.Fprintf(b, "  Tiempo medio acceso: %s minutos\n", meanString(frame, "tiempo_coche_minutos"))
		fmt.Fprintf(b, "  Score accesibilidad medio: %s/10\n", meanString(frame, "accesibilidad_score"))
	case "indicadores":
		fmt.Fprintf(b, "  Ratio médicos promedio: %s/1000 hab\n", meanString(frame, "ratio_medico_1000_hab"))
		fmt.Fprintf(b, "  Esperanza vida media: %s años\n", meanString(frame, "esperanza_vida_2023"))
	}
}

func buildSlice(bundle *dataset.Bundle, it intent.Intent, query string) string {
	plan, ok := slicePlans[it.Tag]
	if !ok {
		plan = slicePlan{dataset: bundle.Primary(), title: "DATOS GENERALES"}
	}

	frame, ok := bundle.Frame(plan.dataset)
	if !ok {
		// Intent points at a dataset outside the whitelist; degrade to
		// the primary dataset instead of leaking it.
		primary := bundle.Primary()
		if primary == "" {
			return ""
		}
		frame, _ = bundle.Frame(primary)
		plan = slicePlan{dataset: primary, title: "DATOS GENERALES"}
	}

	columns := plan.columns
	if len(columns) == 0 {
		names := frame.ColumnNames()
		if len(names) > 4 {
			names = names[:4]
		}
		columns = names
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nANÁLISIS ESPECÍFICO PARA: %q\nTipo: %s\nEntidades: %s\n", query, it.Tag, entityList(it))
	fmt.Fprintf(&b, "%s (%s):\n", plan.title, plan.dataset)
	writeFixedWidth(&b, frame, columns)
	return b.String()
}

// writeFixedWidth renders named columns as fixed-width text, capped at
// maxSliceRows rows. Absent columns render the n/a token in every row.
func writeFixedWidth(b *strings.Builder, frame *dataset.Frame, columns []string) {
	rows := frame.NumRows()
	if rows > maxSliceRows {
		rows = maxSliceRows
	}

	widths := make([]int, len(columns))
	cells := make([][]string, len(columns))
	for i, col := range columns {
		values := frame.Strings(col)
		rendered := make([]string, rows)
		for r := 0; r < rows; r++ {
			if values == nil {
				rendered[r] = notAvailable
			} else {
				rendered[r] = values[r]
			}
		}
		cells[i] = rendered
		widths[i] = len(col)
		for _, v := range rendered {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	for i, col := range columns {
		fmt.Fprintf(b, "%-*s  ", widths[i], col)
	}
	b.WriteString("\n")
	for r := 0; r < rows; r++ {
		for i := range columns {
			fmt.Fprintf(b, "%-*s  ", widths[i], cells[i][r])
		}
		b.WriteString("\n")
	}
}

func entityList(it intent.Intent) string {
	if len(it.Entities) == 0 {
		return "general"
	}
	parts := make([]string, len(it.Entities))
	for i, e := range it.Entities {
		parts[i] = e.Type + ":" + e.Value
	}
	return strings.Join(parts, ", ")
}

func sumString(frame *dataset.Frame, column string) string {
	v, ok := frame.Sum(column)
	if !ok {
		return notAvailable
	}
	return fmt.Sprintf("%.0f", v)
}

func meanString(frame *dataset.Frame, column string) string {
	v, ok := frame.Mean(column)
	if !ok {
		return notAvailable
	}
	return fmt.Sprintf("%.1f", v)
}

func countString(frame *dataset.Frame, column string) string {
	v, ok := frame.CountTrue(column)
	if !ok {
		return notAvailable
	}
	return fmt.Sprintf("%d", v)
}
