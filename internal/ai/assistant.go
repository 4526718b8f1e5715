package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/medaudit/invoice-audit-service/internal/models"
)

// conciliationPrompt instructs the model to pick the candidate whose packaging
// is compatible with the consumed quantity, or none at all.
const conciliationPrompt = `# ROL Y OBJETIVO
Eres un asistente de IA experto en conciliar medicamentos. Tu tarea es analizar un "nombre_original_factura" y la "cantidad_consumida", y elegir el candidato más lógico de la lista.

# CONTEXTO Y REGLAS
- La "lista_de_candidatos" incluye un "score" de similitud de texto. Úsalo como una guía muy importante.
- REGLA CLAVE: Compara la "cantidad_consumida" con la información de empaque en los nombres de los candidatos (ej. "x 7", "x 20"). Elige el candidato cuyo empaque sea el más lógicamente compatible. Por ejemplo, si se consumieron 8 unidades, no puede ser una caja de 7; debe ser una de 20.
- Si NINGÚN candidato es una coincidencia clara y confiable, devuelve null en el código.
- Tu respuesta DEBE SER ÚNICAMENTE un objeto JSON con el código elegido y el score del candidato que elegiste.

# EJEMPLOS

## Ejemplo 1: Coincidencia por Cantidad
### Entrada:
{"nombre_original_factura": "BAREX UNIPEG - SOBRES", "cantidad_consumida": 10, "lista_de_candidatos": [{"codigo": "111", "nombre": "BAREX UNIPEG sobres x 7", "score": 100}, {"codigo": "222", "nombre": "BAREX UNIPEG sobres x 15", "score": 98}]}
### Salida Esperada:
{"codigo_bd_conciliado": "222", "confianza": 98}

## Ejemplo 2: Sin Coincidencia Confiable
### Entrada:
{"nombre_original_factura": "ANALGESICO FUERTE", "cantidad_consumida": 1, "lista_de_candidatos": [{"codigo": "779", "nombre": "AGUA DESTILADA X 500 ML", "score": 30}]}
### Salida Esperada:
{"codigo_bd_conciliado": null, "confianza": 0}

# TAREA ACTUAL
Realiza la conciliación para la siguiente entrada:
### Entrada:
{"nombre_original_factura": %q, "cantidad_consumida": %s, "lista_de_candidatos": %s}
### Salida Esperada:
`

// Assistant resolves ambiguous invoice items against their candidate lists
// through the configured reasoning provider.
type Assistant struct {
	provider Provider
}

// NewAssistant creates an assistant on top of a provider.
func NewAssistant(provider Provider) *Assistant {
	return &Assistant{provider: provider}
}

// promptCandidate is the reduced candidate view offered to the model.
type promptCandidate struct {
	Codigo string  `json:"codigo"`
	Nombre string  `json:"nombre"`
	Score  float64 `json:"score"`
}

// Conciliate asks the reasoning service to pick one of the offered candidates
// for the given description and consumed quantity. Any malformed or empty
// response is an error; the caller degrades the single item, never the batch.
func (a *Assistant) Conciliate(ctx context.Context, descripcion string, cantidad decimal.Decimal, candidatos []models.Candidate) (models.ConciliationVerdict, error) {
	if len(candidatos) == 0 {
		return models.ConciliationVerdict{}, fmt.Errorf("no candidates to conciliate %q", descripcion)
	}

	reduced := make([]promptCandidate, len(candidatos))
	for i, c := range candidatos {
		reduced[i] = promptCandidate{Codigo: c.Codigo, Nombre: c.Nombre, Score: c.Score}
	}
	candidatosJSON, err := json.Marshal(reduced)
	if err != nil {
		return models.ConciliationVerdict{}, fmt.Errorf("failed to encode candidates: %w", err)
	}

	prompt := fmt.Sprintf(conciliationPrompt, descripcion, cantidad.String(), string(candidatosJSON))

	response, err := a.provider.Complete(ctx, prompt, true)
	if err != nil {
		return models.ConciliationVerdict{}, err
	}

	return ParseVerdict(response)
}

// ParseVerdict decodes the model's JSON verdict. The chosen code may arrive
// as a string, a number or null; markdown fences are tolerated.
func ParseVerdict(response string) (models.ConciliationVerdict, error) {
	cleaned := stripFences(response)

	var raw struct {
		Codigo    interface{} `json:"codigo_bd_conciliado"`
		Confianza interface{} `json:"confianza"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return models.ConciliationVerdict{}, fmt.Errorf("verdict parse error: %w - response: %s", err, cleaned)
	}

	verdict := models.ConciliationVerdict{}
	switch v := raw.Codigo.(type) {
	case string:
		verdict.Codigo = strings.TrimSpace(v)
	case float64:
		verdict.Codigo = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	case nil:
		// no reliable match
	default:
		return models.ConciliationVerdict{}, fmt.Errorf("unexpected code type %T in verdict", raw.Codigo)
	}

	if c, ok := raw.Confianza.(float64); ok {
		verdict.Confianza = c
	}

	return verdict, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	cleaned := strings.TrimSpace(s)
	backticks := "```"
	cleaned = strings.ReplaceAll(cleaned, backticks+"json", "")
	cleaned = strings.ReplaceAll(cleaned, backticks, "")
	return strings.TrimSpace(cleaned)
}
