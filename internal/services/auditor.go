package services

import (
	"log"

	"github.com/shopspring/decimal"

	"github.com/medaudit/invoice-audit-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// AnnotateSurcharges computes the price discrepancy for each reconciled item:
// reference total = reference unit price x quantity, discrepancy = invoiced
// total - reference total, both amount and percent rounded to 2 decimals.
// Items without a positive reference price or positive quantity get zero
// discrepancy; a missing reference price is common and never an error.
func AnnotateSurcharges(items []models.ReconciledItem) []models.ReconciledItem {
	annotated := make([]models.ReconciledItem, len(items))
	for i, item := range items {
		item.MontoSobreprecio = decimal.Zero
		item.PorcentajeSobreprecio = decimal.Zero

		if item.PrecioReferencia != nil &&
			item.PrecioReferencia.IsPositive() &&
			item.CantidadTotal.IsPositive() {
			referenceTotal := item.PrecioReferencia.Mul(item.CantidadTotal)
			diff := item.PrecioTotal.Sub(referenceTotal)
			item.MontoSobreprecio = diff.Round(2)
			item.PorcentajeSobreprecio = diff.Div(referenceTotal).Mul(hundred).Round(2)
		}

		annotated[i] = item
	}
	return annotated
}

// BuildSummary assembles the final audit report: counts, totals, the
// discrepant partition (strictly above the threshold percent) and the
// potential savings (positive discrepancies among discrepant items only).
func BuildSummary(
	runID string,
	aggregated []models.AggregatedItem,
	reconciled []models.ReconciledItem,
	unresolved []models.UnresolvedItem,
	umbralSobreprecio float64,
) models.AuditSummary {
	annotated := AnnotateSurcharges(reconciled)

	umbral := decimal.NewFromFloat(umbralSobreprecio)
	var discrepantes []models.ReconciledItem
	ahorro := decimal.Zero
	for _, item := range annotated {
		if item.PorcentajeSobreprecio.GreaterThan(umbral) {
			discrepantes = append(discrepantes, item)
			if item.MontoSobreprecio.IsPositive() {
				ahorro = ahorro.Add(item.MontoSobreprecio)
			}
		}
	}

	montoTotal := decimal.Zero
	for _, item := range aggregated {
		montoTotal = montoTotal.Add(item.PrecioTotal)
	}

	summary := models.AuditSummary{
		RunID: runID,
		Metricas: models.AuditMetrics{
			ItemsProcesados:     len(aggregated),
			ItemsConciliados:    len(annotated),
			ItemsConSobreprecio: len(discrepantes),
			ItemsNoConciliados:  len(unresolved),
		},
		MontoTotalFacturado: montoTotal,
		AhorroPotencial:     ahorro,
		ItemsConciliados:    annotated,
		ItemsConSobreprecio: discrepantes,
		ItemsNoConciliados:  unresolved,
	}

	log.Printf("Audit %s: %d processed, %d reconciled, %d discrepant, %d unresolved",
		runID, summary.Metricas.ItemsProcesados, summary.Metricas.ItemsConciliados,
		summary.Metricas.ItemsConSobreprecio, summary.Metricas.ItemsNoConciliados)
	return summary
}
