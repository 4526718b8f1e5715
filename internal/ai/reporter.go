package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medaudit/invoice-audit-service/internal/models"
)

// reportPrompt turns the structured audit results into an executive summary.
const reportPrompt = `# ROL Y OBJETIVO
Eres un analista de auditoría médica experto. Tu tarea es recibir un objeto JSON con los resultados de una auditoría y redactar un resumen ejecutivo claro y accionable.

# REGLAS DE REDACCIÓN
- Estructura del reporte, estrictamente en este orden:
  1. Resumen General: presenta las métricas clave (ítems procesados, conciliados, con sobreprecio, no conciliados y ahorro potencial).
  2. Detalle de Ítems Conciliados: lista CADA ítem conciliado con su hallazgo (Precio Correcto o Sobreprecio con monto y porcentaje) y la confianza del match.
  3. Ítems No Conciliados: lista los ítems que requieren revisión manual, mostrando el mejor intento del sistema y su puntaje de similitud.
- Si no hay sobreprecios, destácalo como hallazgo principal.
- Tono formal, objetivo y claro. No inventes datos que no estén en el JSON.

# TAREA ACTUAL
Analiza el siguiente JSON de resultados y genera el reporte de auditoría correspondiente:
%s`

// Reporter generates the optional free-text narrative for an audit summary.
// It is a presentation step: failures degrade to the structured summary.
type Reporter struct {
	provider Provider
}

// NewReporter creates a reporter on top of a provider.
func NewReporter(provider Provider) *Reporter {
	return &Reporter{provider: provider}
}

// reportInput is the reduced view handed to the analyst prompt.
type reportInput struct {
	Metricas           models.AuditMetrics     `json:"metricas"`
	AhorroPotencial    string                  `json:"ahorro_potencial"`
	ItemsConciliados   []models.ReconciledItem `json:"items_conciliados"`
	ItemsNoConciliados []models.UnresolvedItem `json:"items_no_conciliados"`
}

// GenerateSummary produces the executive narrative for a finished audit.
func (r *Reporter) GenerateSummary(ctx context.Context, summary models.AuditSummary) (string, error) {
	input := reportInput{
		Metricas:           summary.Metricas,
		AhorroPotencial:    summary.AhorroPotencial.StringFixed(2),
		ItemsConciliados:   summary.ItemsConciliados,
		ItemsNoConciliados: summary.ItemsNoConciliados,
	}

	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit results: %w", err)
	}

	prompt := fmt.Sprintf(reportPrompt, string(data))
	return r.provider.Complete(ctx, prompt, false)
}
