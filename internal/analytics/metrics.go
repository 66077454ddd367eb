// Package analytics derives specialized health metrics from the loaded
// datasets: the per-district equity index, accessibility gap analysis
// and critical service coverage.
package analytics

import (
	"errors"
	"sort"

	"copilot-salud-backend/internal/dataset"
)

var ErrDatasetUnavailable = errors.New("required dataset not loaded for this role")

// Equity score weights: bed and staff ratios are normalized against the
// best district (40 points each), UCI presence adds a flat 20.
const (
	bedScoreWeight   = 40.0
	staffScoreWeight = 40.0
	uciScoreWeight   = 20.0
)

// Accessibility thresholds over the 0-10 score.
const (
	accessExcellent = 8.0
	accessGood      = 6.0
	accessRegular   = 4.0

	attentionTravelMinutes = 60.0
	attentionScoreFloor    = 5.0
)

// criticalServices are the specialty flags whose coverage is audited.
var criticalServices = []string{
	"cardiologia", "neurologia", "oncologia_medica",
	"uci_adultos", "hemodialisis", "urgencias_generales",
}

// DistrictEquity is the equity index of one health district.
type DistrictEquity struct {
	Distrito          string  `json:"distrito"`
	Poblacion         float64 `json:"poblacion"`
	CamasTotales      float64 `json:"camas_totales"`
	PersonalTotal     float64 `json:"personal_total"`
	RatioCamas1000Hab float64 `json:"ratio_camas_1000hab"`
	RatioPersonal1000 float64 `json:"ratio_personal_1000hab"`
	CamasUCI          float64 `json:"camas_uci"`
	ScoreEquidad      float64 `json:"score_equidad"`
}

// MunicipalityAccess is the accessibility gap summary of one
// municipality, classified over its mean score.
type MunicipalityAccess struct {
	Municipio          string  `json:"municipio"`
	TiempoMedio        float64 `json:"tiempo_medio"`
	TiempoMinimo       float64 `json:"tiempo_minimo"`
	ScoreAccesibilidad float64 `json:"score_accesibilidad"`
	CosteMedio         float64 `json:"coste_medio"`
	Nivel              string  `json:"nivel_accesibilidad"`
	RequiereAtencion   bool    `json:"requiere_atencion"`
}

// ServiceGap is the coverage summary of one critical specialty.
type ServiceGap struct {
	Servicio           string  `json:"servicio"`
	CentrosConServicio int     `json:"centros_con_servicio"`
	CentrosSinServicio int     `json:"centros_sin_servicio"`
	CoberturaPct       float64 `json:"cobertura_porcentaje"`
	Prioridad          string  `json:"prioridad"`
}

// EquityIndex scores every health district on a 0-100 scale from bed
// ratio, staff ratio and UCI presence. Needs hospitales and
// indicadores.
func EquityIndex(bundle *dataset.Bundle) ([]DistrictEquity, error) {
	hospitals, ok := bundle.Frame("hospitales")
	if !ok {
		return nil, ErrDatasetUnavailable
	}
	indicators, ok := bundle.Frame("indicadores")
	if !ok {
		return nil, ErrDatasetUnavailable
	}

	population := make(map[string]float64)
	districts := indicators.Strings("distrito_sanitario")
	pops, _ := indicators.Floats("poblacion_total_2025")
	for i, d := range districts {
		if i < len(pops) {
			population[d] = pops[i]
		}
	}

	byDistrict := make(map[string]*DistrictEquity)
	var order []string
	names := hospitals.Strings("distrito_sanitario")
	beds, _ := hospitals.Floats("camas_funcionamiento_2025")
	staff, _ := hospitals.Floats("personal_sanitario_2025")
	uci, _ := hospitals.Floats("uci_camas")
	for i, d := range names {
		pop, known := population[d]
		if !known || pop <= 0 {
			continue
		}
		entry, seen := byDistrict[d]
		if !seen {
			entry = &DistrictEquity{Distrito: d, Poblacion: pop}
			byDistrict[d] = entry
			order = append(order, d)
		}
		if i < len(beds) {
			entry.CamasTotales += beds[i]
		}
		if i < len(staff) {
			entry.PersonalTotal += staff[i]
		}
		if i < len(uci) {
			entry.CamasUCI += uci[i]
		}
	}

	var maxBedRatio, maxStaffRatio float64
	out := make([]DistrictEquity, 0, len(order))
	for _, d := range order {
		entry := byDistrict[d]
		entry.RatioCamas1000Hab = entry.CamasTotales / entry.Poblacion * 1000
		entry.RatioPersonal1000 = entry.PersonalTotal / entry.Poblacion * 1000
		if entry.RatioCamas1000Hab > maxBedRatio {
			maxBedRatio = entry.RatioCamas1000Hab
		}
		if entry.RatioPersonal1000 > maxStaffRatio {
			maxStaffRatio = entry.RatioPersonal1000
		}
		out = append(out, *entry)
	}

	for i := range out {
		var score float64
		if maxBedRatio > 0 {
			score += out[i].RatioCamas1000Hab / maxBedRatio * bedScoreWeight
		}
		if maxStaffRatio > 0 {
			score += out[i].RatioPersonal1000 / maxStaffRatio * staffScoreWeight
		}
		if out[i].CamasUCI > 0 {
			score += uciScoreWeight
		}
		out[i].ScoreEquidad = score
	}
	return out, nil
}

// AccessibilityGaps aggregates travel metrics per origin municipality
// and classifies its access level, worst first. Needs accesibilidad.
func AccessibilityGaps(bundle *dataset.Bundle) ([]MunicipalityAccess, error) {
	access, ok := bundle.Frame("accesibilidad")
	if !ok {
		return nil, ErrDatasetUnavailable
	}

	type acc struct {
		count             int
		timeSum, timeMin  float64
		scoreSum, costSum float64
	}
	byOrigin := make(map[string]*acc)
	var order []string
	origins := access.Strings("municipio_origen")
	times, _ := access.Floats("tiempo_coche_minutos")
	scores, _ := access.Floats("accesibilidad_score")
	costs, _ := access.Floats("coste_transporte_euros")
	for i, origin := range origins {
		entry, seen := byOrigin[origin]
		if !seen {
			entry = &acc{}
			if i < len(times) {
				entry.timeMin = times[i]
			}
			byOrigin[origin] = entry
			order = append(order, origin)
		}
		entry.count++
		if i < len(times) {
			entry.timeSum += times[i]
			if times[i] < entry.timeMin {
				entry.timeMin = times[i]
			}
		}
		if i < len(scores) {
			entry.scoreSum += scores[i]
		}
		if i < len(costs) {
			entry.costSum += costs[i]
		}
	}

	out := make([]MunicipalityAccess, 0, len(order))
	for _, origin := range order {
		entry := byOrigin[origin]
		n := float64(entry.count)
		m := MunicipalityAccess{
			Municipio:          origin,
			TiempoMedio:        entry.timeSum / n,
			TiempoMinimo:       entry.timeMin,
			ScoreAccesibilidad: entry.scoreSum / n,
			CosteMedio:         entry.costSum / n,
		}
		m.Nivel = classifyAccess(m.ScoreAccesibilidad)
		m.RequiereAtencion = m.TiempoMedio > attentionTravelMinutes || m.ScoreAccesibilidad < attentionScoreFloor
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScoreAccesibilidad < out[j].ScoreAccesibilidad
	})
	return out, nil
}

func classifyAccess(score float64) string {
	switch {
	case score >= accessExcellent:
		return "Excelente"
	case score >= accessGood:
		return "Buena"
	case score >= accessRegular:
		return "Regular"
	default:
		return "Deficiente"
	}
}

// ServiceGaps audits coverage of each critical specialty across the
// sampled centers. Needs servicios.
func ServiceGaps(bundle *dataset.Bundle) ([]ServiceGap, error) {
	services, ok := bundle.Frame("servicios")
	if !ok {
		return nil, ErrDatasetUnavailable
	}

	total := services.NumRows()
	out := make([]ServiceGap, 0, len(criticalServices))
	for _, service := range criticalServices {
		if !services.HasColumn(service) || total == 0 {
			continue
		}
		with, _ := services.CountTrue(service)
		without := total - with
		gap := ServiceGap{
			Servicio:           service,
			CentrosConServicio: with,
			CentrosSinServicio: without,
			CoberturaPct:       float64(with) / float64(total) * 100,
		}
		switch {
		case float64(without) > float64(total)*0.6:
			gap.Prioridad = "Alta"
		case without > 0:
			gap.Prioridad = "Media"
		default:
			gap.Prioridad = "Baja"
		}
		out = append(out, gap)
	}
	return out, nil
}
