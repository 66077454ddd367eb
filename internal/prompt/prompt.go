package prompt

import (
	"fmt"

	"copilot-salud-backend/internal/roles"
)

const instructionBlock = `INSTRUCCIONES:
1. Responde ÚNICAMENTE en español
2. Basa tu respuesta en los datos proporcionados en el contexto
3. NO inventes valores numéricos específicos que no estén en el contexto
4. Si no tienes datos suficientes para la consulta, dilo explícitamente
5. Adapta el nivel técnico al rol del usuario`

const schemaContract = `FORMATO DE RESPUESTA REQUERIDO:
Responde SIEMPRE incluyendo un objeto JSON con esta estructura exacta:
{
    "analysis_type": "geographic|financial|capacity|personnel|services|accessibility|demographics|quality|comparison|optimization|planning|urgent|user_management|strategic_planning|executive_summary|equity|infrastructure|metrics|visualization|statistical|predictive|recommendation|general",
    "main_insight": "Insight ESPECÍFICO basado en los datos proporcionados",
    "data_query": "hospitales|demografia|servicios|accesibilidad|indicadores",
    "chart_config": {
        "type": "bar|line|scatter|pie|heatmap|map|histogram",
        "title": "Título ESPECÍFICO relacionado con la consulta",
        "x_axis": "columna_x específica",
        "y_axis": "columna_y específica",
        "color_by": "columna_color opcional",
        "filter_criteria": "criterio opcional"
    },
    "metrics": [
        {"name": "Métrica", "value": "valor REAL del contexto", "unit": "unidad"}
    ],
    "recommendations": ["Recomendación específica y accionable"],
    "detailed_findings": ["Hallazgo específico con datos"],
    "explanation": "Explicación detallada usando los datos reales proporcionados"
}
Máximo 4 métricas y 3 recomendaciones.`

// Build composes the deterministic system and user texts for a query.
// The system text has four regions in fixed order: role persona,
// instruction block, output schema contract, dataset context.
func Build(role roles.Role, ctx Context, query string) (systemText, userText string) {
	systemText = fmt.Sprintf("%s\n\n%s\n\n%s\n\nCONTEXTO DE DATOS DISPONIBLES:\n%s%s",
		Persona(role.PersonaKey),
		instructionBlock,
		schemaContract,
		ctx.Summary,
		ctx.Slice,
	)
	return systemText, query
}
