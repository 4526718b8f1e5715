package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/medaudit/invoice-audit-service/internal/metrics"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

// AuditPipeline runs a full reconciliation pass: flatten, aggregate, cascade,
// disambiguate, annotate, summarize.
type AuditPipeline struct {
	reconciler    *Reconciler
	disambiguator *Disambiguator
}

// NewAuditPipeline wires the pipeline stages together.
func NewAuditPipeline(reconciler *Reconciler, disambiguator *Disambiguator) *AuditPipeline {
	return &AuditPipeline{
		reconciler:    reconciler,
		disambiguator: disambiguator,
	}
}

// Run audits one invoice submission against the catalog. A catalog failure is
// fatal to the batch; AI failures degrade single items to unresolved.
func (p *AuditPipeline) Run(ctx context.Context, input models.InvoiceInput, umbralSobreprecio float64) (models.AuditSummary, error) {
	start := time.Now()
	runID := uuid.New().String()
	log.Printf("Audit %s started, threshold %.2f%%", runID, umbralSobreprecio)

	raw := input.FlattenItems()
	if len(raw) == 0 {
		log.Printf("Audit %s: no items found in the invoice data", runID)
	}

	aggregated := AggregateItems(raw)

	resolved, pending, err := p.reconciler.Reconcile(ctx, aggregated)
	if err != nil {
		return models.AuditSummary{}, fmt.Errorf("reconciliation failed: %w", err)
	}

	aiResolved, unresolved := p.disambiguator.Run(ctx, pending)
	resolved = append(resolved, aiResolved...)

	summary := BuildSummary(runID, aggregated, resolved, unresolved, umbralSobreprecio)
	summary.DuracionMs = float64(time.Since(start).Microseconds()) / 1000.0

	metrics.RecordAudit(
		summary.Metricas.ItemsProcesados,
		summary.Metricas.ItemsConciliados,
		summary.Metricas.ItemsNoConciliados,
		summary.DuracionMs,
	)

	log.Printf("Audit %s finished in %.2fms", runID, summary.DuracionMs)
	return summary, nil
}
