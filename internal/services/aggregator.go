package services

import (
	"log"

	"github.com/medaudit/invoice-audit-service/internal/models"
	"github.com/medaudit/invoice-audit-service/internal/normalize"
)

// AggregateItems groups raw line items by their normalized description key,
// summing quantity and total price per group. The first-seen original
// description, unit price, date and note (in batch order) are kept as the
// group's representative metadata.
//
// The sum of quantities and totals across the output always equals the sum
// across the input: grouping moves amounts around, it never drops them.
func AggregateItems(items []models.RawLineItem) []models.AggregatedItem {
	groups := make(map[string]*models.AggregatedItem)
	var order []string

	for _, item := range items {
		clave := normalize.Description(item.Descripcion)

		agg, ok := groups[clave]
		if !ok {
			agg = &models.AggregatedItem{
				ClaveNormalizada: clave,
				Descripcion:      item.Descripcion,
				Fecha:            item.Fecha,
				Notas:            item.Notas,
				PrecioUnitario:   item.PrecioUnitario,
			}
			groups[clave] = agg
			order = append(order, clave)
		}

		agg.CantidadTotal = agg.CantidadTotal.Add(item.Cantidad)
		agg.PrecioTotal = agg.PrecioTotal.Add(item.PrecioTotal)
	}

	aggregated := make([]models.AggregatedItem, 0, len(order))
	for _, clave := range order {
		aggregated = append(aggregated, *groups[clave])
	}

	log.Printf("Aggregated %d raw items into %d unique items", len(items), len(aggregated))
	return aggregated
}
