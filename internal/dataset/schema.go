package dataset

// ColumnType is the declared semantic type of a CSV column. Numeric
// columns are narrowed where safe (population counts to int32, ratios
// to float32, service flags to bool).
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int32"
	TypeFloat  ColumnType = "float32"
	TypeBool   ColumnType = "bool"
)

// Column declares a name, a semantic type and a human unit. Components
// consult these declarations instead of hard-coding column strings.
type Column struct {
	Name string
	Type ColumnType
	Unit string
}

// Schema declares one dataset: its key, source file and typed columns.
type Schema struct {
	Key     string
	File    string
	Columns []Column
}

// Schemas lists the five datasets of the Málaga health system, in the
// fixed declaration order used across the dashboard.
var Schemas = []Schema{
	{
		Key:  "hospitales",
		File: "hospitales_malaga_2025.csv",
		Columns: []Column{
			{Name: "nombre", Type: TypeString},
			{Name: "tipo_centro", Type: TypeString},
			{Name: "distrito_sanitario", Type: TypeString},
			{Name: "municipio", Type: TypeString},
			{Name: "camas_funcionamiento_2025", Type: TypeInt, Unit: "camas"},
			{Name: "uci_camas", Type: TypeInt, Unit: "camas"},
			{Name: "quirofanos_activos", Type: TypeInt, Unit: "quirófanos"},
			{Name: "personal_sanitario_2025", Type: TypeInt, Unit: "profesionales"},
			{Name: "poblacion_referencia_2025", Type: TypeInt, Unit: "habitantes"},
			{Name: "latitud", Type: TypeFloat, Unit: "grados"},
			{Name: "longitud", Type: TypeFloat, Unit: "grados"},
		},
	},
	{
		Key:  "demografia",
		File: "demografia_malaga_2025.csv",
		Columns: []Column{
			{Name: "municipio", Type: TypeString},
			{Name: "poblacion_2025", Type: TypeInt, Unit: "habitantes"},
			{Name: "poblacion_2024", Type: TypeInt, Unit: "habitantes"},
			{Name: "crecimiento_2024_2025", Type: TypeInt, Unit: "habitantes"},
			{Name: "densidad_hab_km2_2025", Type: TypeFloat, Unit: "hab/km²"},
			{Name: "renta_per_capita_2024", Type: TypeFloat, Unit: "euros"},
			{Name: "indice_envejecimiento_2025", Type: TypeFloat, Unit: "%"},
		},
	},
	{
		Key:  "servicios",
		File: "servicios_sanitarios_2025.csv",
		Columns: []Column{
			{Name: "centro_sanitario", Type: TypeString},
			{Name: "cardiologia", Type: TypeBool},
			{Name: "neurologia", Type: TypeBool},
			{Name: "oncologia_medica", Type: TypeBool},
			{Name: "pediatria", Type: TypeBool},
			{Name: "uci_adultos", Type: TypeBool},
			{Name: "hemodialisis", Type: TypeBool},
			{Name: "urgencias_generales", Type: TypeBool},
			{Name: "profesionales_medicos_2025", Type: TypeInt, Unit: "profesionales"},
			{Name: "profesionales_enfermeria_2025", Type: TypeInt, Unit: "profesionales"},
			{Name: "consultas_externas_anuales_2024", Type: TypeInt, Unit: "consultas"},
		},
	},
	{
		Key:  "accesibilidad",
		File: "accesibilidad_sanitaria_2025.csv",
		Columns: []Column{
			{Name: "municipio_origen", Type: TypeString},
			{Name: "hospital_destino", Type: TypeString},
			{Name: "tiempo_coche_minutos", Type: TypeFloat, Unit: "minutos"},
			{Name: "coste_transporte_euros", Type: TypeFloat, Unit: "euros"},
			{Name: "accesibilidad_score", Type: TypeFloat, Unit: "puntos/10"},
		},
	},
	{
		Key:  "indicadores",
		File: "indicadores_salud_2025.csv",
		Columns: []Column{
			{Name: "distrito_sanitario", Type: TypeString},
			{Name: "poblacion_total_2025", Type: TypeInt, Unit: "habitantes"},
			{Name: "ratio_medico_1000_hab", Type: TypeFloat, Unit: "médicos/1000 hab"},
			{Name: "esperanza_vida_2023", Type: TypeFloat, Unit: "años"},
			{Name: "mortalidad_infantil_x1000", Type: TypeFloat, Unit: "por 1000 nacidos"},
			{Name: "cobertura_vacunal_infantil_pct", Type: TypeFloat, Unit: "%"},
			{Name: "gasto_sanitario_per_capita", Type: TypeFloat, Unit: "euros"},
		},
	},
}

// SchemaFor returns the declared schema for a dataset key.
func SchemaFor(key string) (Schema, bool) {
	for _, s := range Schemas {
		if s.Key == key {
			return s, true
		}
	}
	return Schema{}, false
}

// Unit returns the declared unit of a column within a dataset, or "".
func Unit(datasetKey, column string) string {
	s, ok := SchemaFor(datasetKey)
	if !ok {
		return ""
	}
	for _, c := range s.Columns {
		if c.Name == column {
			return c.Unit
		}
	}
	return ""
}
