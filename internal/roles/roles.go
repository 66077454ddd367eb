package roles

import "time"

// Role is the process-wide policy record consulted by every component
// instead of branching on the role string.
type Role struct {
	Key              string
	Name             string
	PersonaKey       string
	Capabilities     map[string]bool
	DatasetWhitelist []string
	CacheTTL         time.Duration
	FocusAreas       []string
}

// Capability tags.
const (
	CapFullAccess   = "acceso_completo"
	CapUserMgmt     = "gestion_usuarios"
	CapSystemConfig = "configuracion_sistema"
	CapAIAnalysis   = "analisis_ia"
	CapViewData     = "ver_datos"
	CapReports      = "reportes"
	CapPlanning     = "planificacion"
)

var table = map[string]Role{
	"admin": {
		Key:        "admin",
		Name:       "Administrador del Sistema",
		PersonaKey: "admin",
		Capabilities: caps(CapFullAccess, CapUserMgmt, CapSystemConfig,
			CapAIAnalysis, CapViewData, CapReports, CapPlanning),
		DatasetWhitelist: []string{"hospitales", "demografia", "servicios", "accesibilidad", "indicadores"},
		CacheTTL:         3600 * time.Second,
		FocusAreas:       []string{"Supervisión General", "Gestión de Usuarios", "Análisis Estratégico", "Auditoría del Sistema"},
	},
	"gestor": {
		Key:              "gestor",
		Name:             "Gestor Sanitario",
		PersonaKey:       "gestor",
		Capabilities:     caps(CapAIAnalysis, CapViewData, CapReports, CapPlanning),
		DatasetWhitelist: []string{"hospitales", "demografia", "servicios", "accesibilidad", "indicadores"},
		CacheTTL:         1800 * time.Second,
		FocusAreas:       []string{"Capacidad Hospitalaria", "Tiempos de Acceso", "Cobertura de Servicios", "Planificación Operativa"},
	},
	"analista": {
		Key:              "analista",
		Name:             "Analista de Datos",
		PersonaKey:       "analista",
		Capabilities:     caps(CapAIAnalysis, CapViewData, CapReports),
		DatasetWhitelist: []string{"demografia", "indicadores", "servicios"},
		CacheTTL:         900 * time.Second,
		FocusAreas:       []string{"Análisis Estadístico", "Tendencias Demográficas", "Correlaciones", "Calidad de Datos"},
	},
	"invitado": {
		Key:              "invitado",
		Name:             "Usuario Invitado",
		PersonaKey:       "invitado",
		Capabilities:     caps(CapAIAnalysis, CapViewData),
		DatasetWhitelist: []string{"hospitales", "demografia"},
		CacheTTL:         300 * time.Second,
		FocusAreas:       []string{"Información General", "Ubicaciones", "Datos Públicos"},
	},
}

func caps(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Get returns the policy record for the role key.
func Get(key string) (Role, bool) {
	r, ok := table[key]
	return r, ok
}

// GetOrGuest returns the role, falling back to invitado for unknown keys.
func GetOrGuest(key string) Role {
	if r, ok := table[key]; ok {
		return r
	}
	return table["invitado"]
}

// Keys lists the known role keys in a fixed order.
func Keys() []string {
	return []string{"admin", "gestor", "analista", "invitado"}
}

func (r Role) Has(capability string) bool {
	return r.Capabilities[capability]
}

func (r Role) AllowsDataset(key string) bool {
	for _, d := range r.DatasetWhitelist {
		if d == key {
			return true
		}
	}
	return false
}
