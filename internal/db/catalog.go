package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medaudit/invoice-audit-service/internal/normalize"
)

// Medication is one entry of the reference catalog. The catalog is read-only
// from this service's point of view.
type Medication struct {
	Codigo  string           `json:"codigo"`
	Troquel string           `json:"troquel,omitempty"`
	Nombre  string           `json:"nombre"`
	Precio  *decimal.Decimal `json:"precio"` // nil when the catalog has no reference price
}

// CatalogGateway is the read-only lookup surface over the medicamentos table.
type CatalogGateway struct {
	pool *pgxpool.Pool
}

// NewCatalogGateway creates a gateway bound to the given pool.
func NewCatalogGateway(pool *pgxpool.Pool) *CatalogGateway {
	return &CatalogGateway{pool: pool}
}

// GetByCodigo looks up a medication by its primary code or its troquel
// (secondary code). Returns (nil, nil) when no row matches.
func (g *CatalogGateway) GetByCodigo(ctx context.Context, codigo string) (*Medication, error) {
	query := `
		SELECT codigo, COALESCE(troquel, ''), nombre, precio FROM medicamentos WHERE codigo = $1
		UNION
		SELECT codigo, COALESCE(troquel, ''), nombre, precio FROM medicamentos WHERE troquel = $1
		LIMIT 1
	`

	return g.scanOne(g.pool.QueryRow(ctx, query, strings.TrimSpace(codigo)))
}

// GetByExactName looks up a medication by case-insensitive name equality.
// Returns (nil, nil) when no row matches.
func (g *CatalogGateway) GetByExactName(ctx context.Context, nombre string) (*Medication, error) {
	query := `SELECT codigo, COALESCE(troquel, ''), nombre, precio FROM medicamentos WHERE LOWER(nombre) = LOWER($1)`

	return g.scanOne(g.pool.QueryRow(ctx, query, nombre))
}

// SearchFuzzy returns up to k candidates whose names contain every token of
// the normalized query (AND semantics), shortest names first. When the strict
// multi-token query finds nothing, it falls back to the first token alone:
// this rescues descriptions carrying one rare or misspelled qualifier.
func (g *CatalogGateway) SearchFuzzy(ctx context.Context, q string, k int) ([]Medication, error) {
	words := normalize.Tokens(q)
	if len(words) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(words))
	args := make([]interface{}, 0, len(words)+1)
	for i, w := range words {
		clauses[i] = fmt.Sprintf("nombre ILIKE $%d", i+1)
		args = append(args, "%"+w+"%")
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT codigo, COALESCE(troquel, ''), nombre, precio FROM medicamentos
		WHERE %s
		ORDER BY LENGTH(nombre)
		LIMIT $%d
	`, strings.Join(clauses, " AND "), len(words)+1)

	results, err := g.queryMedications(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 && len(words) > 1 {
		log.Printf("Fuzzy search for %q returned nothing, falling back to single token %q", q, words[0])
		fallback := `
			SELECT codigo, COALESCE(troquel, ''), nombre, precio FROM medicamentos
			WHERE nombre ILIKE $1
			ORDER BY LENGTH(nombre)
			LIMIT $2
		`
		results, err = g.queryMedications(ctx, fallback, "%"+words[0]+"%", k)
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (g *CatalogGateway) queryMedications(ctx context.Context, query string, args ...interface{}) ([]Medication, error) {
	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		var m Medication
		var precio *float64
		if err := rows.Scan(&m.Codigo, &m.Troquel, &m.Nombre, &precio); err != nil {
			return nil, fmt.Errorf("catalog row scan failed: %w", err)
		}
		if precio != nil {
			d := decimal.NewFromFloat(*precio)
			m.Precio = &d
		}
		meds = append(meds, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows failed: %w", err)
	}

	return meds, nil
}

func (g *CatalogGateway) scanOne(row pgx.Row) (*Medication, error) {
	var m Medication
	var precio *float64
	err := row.Scan(&m.Codigo, &m.Troquel, &m.Nombre, &precio)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}
	if precio != nil {
		d := decimal.NewFromFloat(*precio)
		m.Precio = &d
	}
	return &m, nil
}
