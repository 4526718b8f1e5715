package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

// Catalog is the read-only lookup surface the reconciler needs. Satisfied by
// db.CatalogGateway; tests supply fakes.
type Catalog interface {
	GetByCodigo(ctx context.Context, codigo string) (*db.Medication, error)
	GetByExactName(ctx context.Context, nombre string) (*db.Medication, error)
	SearchFuzzy(ctx context.Context, q string, k int) ([]db.Medication, error)
}

// PendingItem is an aggregated item the cascade could not resolve on its own,
// carrying the ranked candidates for the disambiguation stage.
type PendingItem struct {
	Item         models.AggregatedItem
	Candidatos   []models.Candidate
	MejorIntento *models.BestAttempt
}

// Reconciler runs the match cascade per item: synonym table, exact catalog
// name, then scored fuzzy candidates with a perfect-score shortcut.
type Reconciler struct {
	catalog  Catalog
	synonyms *SynonymStore

	maxCandidatos int // broad fuzzy candidates fetched per item
	topCandidatos int // candidates retained for the AI stage
}

// NewReconciler wires a reconciler. Non-positive limits fall back to the
// defaults (50 broad candidates, top 10 kept).
func NewReconciler(catalog Catalog, synonyms *SynonymStore, maxCandidatos, topCandidatos int) *Reconciler {
	if maxCandidatos <= 0 {
		maxCandidatos = 50
	}
	if topCandidatos <= 0 {
		topCandidatos = 10
	}
	return &Reconciler{
		catalog:       catalog,
		synonyms:      synonyms,
		maxCandidatos: maxCandidatos,
		topCandidatos: topCandidatos,
	}
}

// Reconcile partitions the batch into resolved items and pending items. A
// catalog failure aborts the whole batch: no reconciliation is possible
// without the reference data.
func (r *Reconciler) Reconcile(ctx context.Context, items []models.AggregatedItem) ([]models.ReconciledItem, []PendingItem, error) {
	var resolved []models.ReconciledItem
	var pending []PendingItem

	for _, item := range items {
		// Unparseable descriptions cannot be matched against anything;
		// surface them as unresolved instead of dropping them.
		if item.ClaveNormalizada == "" {
			pending = append(pending, PendingItem{Item: item})
			continue
		}

		match, done, err := r.reconcileOne(ctx, item)
		if err != nil {
			return nil, nil, fmt.Errorf("reconciling %q: %w", item.Descripcion, err)
		}
		if done {
			resolved = append(resolved, *match)
		} else {
			p, err := r.escalate(ctx, item)
			if err != nil {
				return nil, nil, fmt.Errorf("escalating %q: %w", item.Descripcion, err)
			}
			if p.resolved != nil {
				resolved = append(resolved, *p.resolved)
			} else {
				pending = append(pending, p.pending)
			}
		}
	}

	log.Printf("Cascade finished: %d resolved, %d pending", len(resolved), len(pending))
	return resolved, pending, nil
}

// reconcileOne tries the two cheap stages: synonym table, then exact name.
func (r *Reconciler) reconcileOne(ctx context.Context, item models.AggregatedItem) (*models.ReconciledItem, bool, error) {
	// 1. Synonym check, before anything else: a prior correction always wins.
	if entry, ok := r.synonyms.Lookup(item.ClaveNormalizada); ok {
		med, err := r.catalog.GetByCodigo(ctx, entry.Codigo)
		if err != nil {
			return nil, false, err
		}
		if med != nil {
			metodo := models.MethodSinonimo
			if entry.Metodo == models.MethodManual {
				metodo = models.MethodManual
			}
			return newReconciled(item, med, metodo, 100), true, nil
		}
		log.Printf("Synonym for %q points at missing catalog code %s, ignoring", item.ClaveNormalizada, entry.Codigo)
	}

	// 2. Exact-name check.
	med, err := r.catalog.GetByExactName(ctx, item.Descripcion)
	if err != nil {
		return nil, false, err
	}
	if med != nil {
		return newReconciled(item, med, models.MethodExacto, 100), true, nil
	}

	return nil, false, nil
}

type escalation struct {
	resolved *models.ReconciledItem
	pending  PendingItem
}

// escalate runs the fuzzy stage: broad candidate generation, scoring, the
// perfect-score shortcut, and otherwise the top-N hand-off to the AI.
func (r *Reconciler) escalate(ctx context.Context, item models.AggregatedItem) (escalation, error) {
	meds, err := r.catalog.SearchFuzzy(ctx, item.Descripcion, r.maxCandidatos)
	if err != nil {
		return escalation{}, err
	}

	var scored []models.Candidate
	for _, med := range meds {
		score := TokenSetRatio(item.Descripcion, med.Nombre)
		if score > ScoreFloor {
			scored = append(scored, models.Candidate{
				Codigo: med.Codigo,
				Nombre: med.Nombre,
				Precio: med.Precio,
				Score:  score,
			})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	// 100-score token-set match resolves without an AI round trip.
	if len(scored) > 0 && scored[0].Score == 100 {
		best := scored[0]
		log.Printf("Perfect similarity match for %q: %s", item.Descripcion, best.Nombre)
		return escalation{resolved: &models.ReconciledItem{
			AggregatedItem:   item,
			CodigoBD:         best.Codigo,
			NombreBD:         best.Nombre,
			PrecioReferencia: best.Precio,
			Confianza:        100,
			Metodo:           models.MethodExacto,
		}}, nil
	}

	pending := PendingItem{Item: item}
	if len(scored) > 0 {
		top := scored
		if len(top) > r.topCandidatos {
			top = top[:r.topCandidatos]
		}
		pending.Candidatos = top
		pending.MejorIntento = &models.BestAttempt{NombreBD: scored[0].Nombre, Score: scored[0].Score}
	}
	return escalation{pending: pending}, nil
}

func newReconciled(item models.AggregatedItem, med *db.Medication, metodo string, confianza float64) *models.ReconciledItem {
	return &models.ReconciledItem{
		AggregatedItem:   item,
		CodigoBD:         med.Codigo,
		NombreBD:         med.Nombre,
		PrecioReferencia: med.Precio,
		Confianza:        confianza,
		Metodo:           metodo,
	}
}
