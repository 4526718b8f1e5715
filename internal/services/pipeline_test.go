package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

// TestPipelineEndToEnd runs the whole audit over a small invoice: one item
// resolves by exact name, one goes through the AI stage, one stays
// unresolved.
func TestPipelineEndToEnd(t *testing.T) {
	exacto := &db.Medication{Codigo: "100", Nombre: "IBUPROFENO 400 MG COMPRIMIDO", Precio: ptrDecimal(100)}
	fuzzy := db.Medication{Codigo: "200", Nombre: "PARACETAMOL 500 MG JARABE", Precio: ptrDecimal(50)}

	catalog := &fakeCatalog{
		byName: map[string]*db.Medication{"IBUPROFENO 400 MG COMPRIMIDO": exacto},
		fuzzy:  []db.Medication{fuzzy},
	}
	agent := &fakeAgent{
		verdicts: map[string]models.ConciliationVerdict{
			"PARACETAMOL 500 MG FORTE": {Codigo: "200", Confianza: 90},
		},
	}

	pipeline := NewAuditPipeline(
		NewReconciler(catalog, NewSynonymStore(nil), 0, 0),
		NewDisambiguator(agent),
	)

	input := models.InvoiceInput{
		Pacientes: []models.Paciente{{
			Facturas: []models.Factura{{
				Items: []models.WireItem{
					// Reference 100 x 2 = 200, invoiced 260: 30% surcharge
					{Descripcion: "IBUPROFENO 400 MG COMPRIMIDO", Cantidad: float64(1), PrecioTotal: float64(130)},
					{Descripcion: "IBUPROFENO 400 MG COMPRIMIDO", Cantidad: float64(1), PrecioTotal: float64(130)},
					{Descripcion: "PARACETAMOL 500 MG FORTE", Cantidad: float64(2), PrecioTotal: "95.00"},
					{Descripcion: "ALGO IRRECONOCIBLE QWERTY", Cantidad: float64(1), PrecioTotal: float64(10)},
				},
			}},
		}},
	}

	summary, err := pipeline.Run(context.Background(), input, 5)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Metricas.ItemsProcesados)
	assert.Equal(t, 2, summary.Metricas.ItemsConciliados)
	assert.Equal(t, 1, summary.Metricas.ItemsNoConciliados)
	assert.Equal(t, "365.00", summary.MontoTotalFacturado.StringFixed(2))

	methods := make(map[string]string)
	for _, item := range summary.ItemsConciliados {
		methods[item.CodigoBD] = item.Metodo
	}
	assert.Equal(t, models.MethodExacto, methods["100"])
	assert.Equal(t, models.MethodIAFuzzy, methods["200"])

	// The duplicated ibuprofen lines aggregate before being audited
	require.Len(t, summary.ItemsConSobreprecio, 1)
	assert.Equal(t, "100", summary.ItemsConSobreprecio[0].CodigoBD)
	assert.Equal(t, "60.00", summary.ItemsConSobreprecio[0].MontoSobreprecio.StringFixed(2))
	assert.Equal(t, "30.00", summary.ItemsConSobreprecio[0].PorcentajeSobreprecio.StringFixed(2))
	assert.Equal(t, "60.00", summary.AhorroPotencial.StringFixed(2))

	require.Len(t, summary.ItemsNoConciliados, 1)
	assert.Equal(t, "ALGO IRRECONOCIBLE QWERTY", summary.ItemsNoConciliados[0].Descripcion)
}

func TestPipelineEmptyInvoice(t *testing.T) {
	pipeline := NewAuditPipeline(
		NewReconciler(&fakeCatalog{}, NewSynonymStore(nil), 0, 0),
		NewDisambiguator(&fakeAgent{}),
	)

	summary, err := pipeline.Run(context.Background(), models.InvoiceInput{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Metricas.ItemsProcesados)
	assert.True(t, summary.MontoTotalFacturado.IsZero())
}
