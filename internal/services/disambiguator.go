package services

import (
	"context"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/medaudit/invoice-audit-service/internal/metrics"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

// ConciliationAgent resolves one ambiguous item against its candidate list
// using an external reasoning service. Implemented by ai.Assistant; tests
// supply fakes. An empty Codigo in the verdict means "no reliable match".
type ConciliationAgent interface {
	Conciliate(ctx context.Context, descripcion string, cantidad decimal.Decimal, candidatos []models.Candidate) (models.ConciliationVerdict, error)
}

// Diagnostic codes recorded per unresolved item, for observability only.
const (
	DiagSinCandidatos    = "sin_candidatos"
	DiagErrorAgente      = "error_agente"
	DiagSinCoincidencia  = "sin_coincidencia"
	DiagCodigoNoOfrecido = "codigo_no_ofrecido"
)

// conciliationResult is the per-item outcome of the AI stage. Failures are
// values here, never batch errors: one item failing must not disturb its
// siblings.
type conciliationResult struct {
	resolved    *models.ReconciledItem
	unresolved  *models.UnresolvedItem
	diagnostico string
}

// Disambiguator fans pending items out to the reasoning service concurrently
// and folds the verdicts back into resolved/unresolved sets.
type Disambiguator struct {
	agent ConciliationAgent
}

// NewDisambiguator wires a disambiguator around an agent.
func NewDisambiguator(agent ConciliationAgent) *Disambiguator {
	return &Disambiguator{agent: agent}
}

// Run dispatches every pending item's request concurrently, waits for all of
// them, and maps verdicts back positionally. Items that escalated with no
// candidates never reach the agent; they go straight to unresolved.
func (d *Disambiguator) Run(ctx context.Context, pending []PendingItem) ([]models.ReconciledItem, []models.UnresolvedItem) {
	if len(pending) == 0 {
		return nil, nil
	}

	results := make([]conciliationResult, len(pending))

	var wg sync.WaitGroup
	for i, p := range pending {
		if len(p.Candidatos) == 0 {
			results[i] = unresolvedResult(p, DiagSinCandidatos)
			continue
		}

		wg.Add(1)
		go func(i int, p PendingItem) {
			defer wg.Done()
			results[i] = d.conciliateOne(ctx, p)
		}(i, p)
	}
	wg.Wait()

	var resolved []models.ReconciledItem
	var unresolved []models.UnresolvedItem
	for _, res := range results {
		metrics.RecordDiagnostic(res.diagnostico)
		if res.resolved != nil {
			resolved = append(resolved, *res.resolved)
		} else {
			unresolved = append(unresolved, *res.unresolved)
		}
	}

	log.Printf("Disambiguation finished: %d resolved, %d unresolved", len(resolved), len(unresolved))
	return resolved, unresolved
}

func (d *Disambiguator) conciliateOne(ctx context.Context, p PendingItem) conciliationResult {
	metrics.RecordAICall()
	verdict, err := d.agent.Conciliate(ctx, p.Item.Descripcion, p.Item.CantidadTotal, p.Candidatos)
	if err != nil {
		log.Printf("AI conciliation failed for %q: %v", p.Item.Descripcion, err)
		metrics.RecordAIFailure()
		return unresolvedResult(p, DiagErrorAgente)
	}

	if verdict.Codigo == "" {
		return unresolvedResult(p, DiagSinCoincidencia)
	}

	// Cross-check against the candidates we actually offered: a code outside
	// that list is a hallucination, not a match.
	var elegido *models.Candidate
	for i := range p.Candidatos {
		if p.Candidatos[i].Codigo == verdict.Codigo {
			elegido = &p.Candidatos[i]
			break
		}
	}
	if elegido == nil {
		log.Printf("AI chose code %s for %q but it was not among the offered candidates", verdict.Codigo, p.Item.Descripcion)
		metrics.RecordAIFailure()
		return unresolvedResult(p, DiagCodigoNoOfrecido)
	}

	// The candidate's measured similarity score is the canonical confidence,
	// not the model's self-reported figure.
	return conciliationResult{resolved: &models.ReconciledItem{
		AggregatedItem:   p.Item,
		CodigoBD:         elegido.Codigo,
		NombreBD:         elegido.Nombre,
		PrecioReferencia: elegido.Precio,
		Confianza:        elegido.Score,
		Metodo:           models.MethodIAFuzzy,
	}}
}

func unresolvedResult(p PendingItem, diagnostico string) conciliationResult {
	return conciliationResult{
		unresolved: &models.UnresolvedItem{
			AggregatedItem: p.Item,
			MejorIntento:   p.MejorIntento,
		},
		diagnostico: diagnostico,
	}
}
