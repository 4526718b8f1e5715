package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Match methods for reconciled items
const (
	MethodManual   = "Manual"
	MethodExacto   = "Exacto"
	MethodSinonimo = "Sinónimo"
	MethodIAFuzzy  = "IA/Fuzzy"
)

// RawLineItem is a single line item extracted from an invoice submission.
// Numeric fields that fail to parse upstream arrive as zero, never as an error.
type RawLineItem struct {
	Fecha          string          `json:"fecha"`
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	PrecioTotal    decimal.Decimal `json:"precio_total"`
	Notas          string          `json:"notas,omitempty"`
}

// AggregatedItem is one group of raw line items sharing a normalized
// description key. Quantities and totals are summed across the group; the
// remaining fields keep the first-seen values in batch order.
type AggregatedItem struct {
	ClaveNormalizada string          `json:"clave_normalizada"`
	Descripcion      string          `json:"descripcion"`
	Fecha            string          `json:"fecha,omitempty"`
	Notas            string          `json:"notas,omitempty"`
	CantidadTotal    decimal.Decimal `json:"cantidad_total"`
	PrecioUnitario   decimal.Decimal `json:"precio_unitario"`
	PrecioTotal      decimal.Decimal `json:"precio_total"`
}

// Candidate is a catalog entry proposed as a possible match for an invoice
// description, with its text-similarity score (0-100). Ephemeral, never stored.
type Candidate struct {
	Codigo string          `json:"codigo"`
	Nombre string          `json:"nombre"`
	Precio *decimal.Decimal `json:"precio"`
	Score  float64         `json:"score"`
}

// BestAttempt records the closest candidate for an item that could not be
// reconciled, for audit transparency.
type BestAttempt struct {
	NombreBD string  `json:"nombre_bd"`
	Score    float64 `json:"score"`
}

// ReconciledItem is an aggregated item matched to a catalog entry, annotated
// with price-discrepancy fields by the auditor.
type ReconciledItem struct {
	AggregatedItem

	CodigoBD         string           `json:"codigo_bd"`
	NombreBD         string           `json:"nombre_bd"`
	PrecioReferencia *decimal.Decimal `json:"precio_referencia"`
	Confianza        float64          `json:"confianza"`
	Metodo           string           `json:"metodo"`

	// Filled by the price auditor
	MontoSobreprecio      decimal.Decimal `json:"monto_sobreprecio"`
	PorcentajeSobreprecio decimal.Decimal `json:"porcentaje_sobreprecio"`
}

// UnresolvedItem is an aggregated item with no catalog code assigned.
type UnresolvedItem struct {
	AggregatedItem

	MejorIntento *BestAttempt `json:"mejor_intento,omitempty"`
}

// AuditMetrics are the headline counts of an audit run.
type AuditMetrics struct {
	ItemsProcesados     int `json:"items_procesados"`
	ItemsConciliados    int `json:"items_conciliados"`
	ItemsConSobreprecio int `json:"items_con_sobreprecio"`
	ItemsNoConciliados  int `json:"items_no_conciliados"`
}

// AuditSummary is the final output of the reconciliation pipeline.
type AuditSummary struct {
	RunID    string       `json:"run_id"`
	Metricas AuditMetrics `json:"metricas"`

	MontoTotalFacturado decimal.Decimal `json:"monto_total_facturado"`
	AhorroPotencial     decimal.Decimal `json:"ahorro_potencial"`

	ItemsConciliados    []ReconciledItem `json:"items_conciliados"`
	ItemsConSobreprecio []ReconciledItem `json:"items_con_sobreprecio"`
	ItemsNoConciliados  []UnresolvedItem `json:"items_no_conciliados"`

	ResumenEjecutivo string  `json:"resumen_ejecutivo,omitempty"`
	DuracionMs       float64 `json:"duracion_ms"`
}

// ConciliationVerdict is the structured outcome of one AI conciliation call.
// An empty Codigo means the service found no reliable match.
type ConciliationVerdict struct {
	Codigo    string  `json:"codigo_bd_conciliado"`
	Confianza float64 `json:"confianza"`
}

// InvoiceInput is the wire shape of an invoice submission: one document per
// hospital stay, items nested under pacientes -> facturas.
type InvoiceInput struct {
	Pacientes []Paciente `json:"pacientes"`
}

type Paciente struct {
	InformacionPaciente PacienteInfo `json:"informacion_paciente"`
	Facturas            []Factura    `json:"facturas"`
}

type PacienteInfo struct {
	Nombre         string `json:"nombre"`
	NumeroAfiliado string `json:"numero_afiliado,omitempty"`
}

type Factura struct {
	Items   []WireItem `json:"items"`
	Resumen *Resumen   `json:"resumen,omitempty"`
}

type Resumen struct {
	MontoTotal *decimal.Decimal `json:"monto_total,omitempty"`
}

// WireItem tolerates the inconsistencies of upstream invoice parsers: numbers
// can arrive as JSON numbers or as strings with thousands separators, and the
// description key may or may not carry the accent.
type WireItem struct {
	Fecha             string      `json:"fecha"`
	Descripcion       string      `json:"descripcion"`
	DescripcionAcento string      `json:"descripción"` // alternative field name
	Cantidad          interface{} `json:"cantidad"`
	PrecioUnitario    interface{} `json:"precio_unitario"`
	PrecioTotal       interface{} `json:"precio_total"`
	Notas             string      `json:"notas,omitempty"`
}

// Description returns whichever description field the upstream parser filled.
func (w WireItem) Description() string {
	if strings.TrimSpace(w.Descripcion) != "" {
		return w.Descripcion
	}
	return w.DescripcionAcento
}

// FlattenItems collects every line item across all patients and invoices of a
// submission, coercing malformed numeric fields to zero.
func (in InvoiceInput) FlattenItems() []RawLineItem {
	var items []RawLineItem
	for _, pac := range in.Pacientes {
		for _, fac := range pac.Facturas {
			for _, it := range fac.Items {
				items = append(items, RawLineItem{
					Fecha:          it.Fecha,
					Descripcion:    it.Description(),
					Cantidad:       ParseDecimal(it.Cantidad),
					PrecioUnitario: ParseDecimal(it.PrecioUnitario),
					PrecioTotal:    ParseDecimal(it.PrecioTotal),
					Notas:          it.Notas,
				})
			}
		}
	}
	return items
}

// ParseDecimal handles flexible number parsing from interface{}.
// Supports: numbers, strings, strings with commas (e.g., "3,965.34").
// Anything unparseable is zero, never an error.
func ParseDecimal(v interface{}) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		if val == "" {
			return decimal.Zero
		}
		cleaned := strings.ReplaceAll(val, ",", "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
