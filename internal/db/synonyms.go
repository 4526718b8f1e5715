package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SynonymEntry maps a normalized invoice description to a catalog code, with
// the provenance of the mapping ("Manual" for feedback corrections,
// "Sinónimo" for seeded entries).
type SynonymEntry struct {
	Codigo string
	Metodo string
}

// SynonymRepo persists the description -> catalog code mappings.
type SynonymRepo struct {
	pool *pgxpool.Pool
}

// NewSynonymRepo creates a repo bound to the given pool.
func NewSynonymRepo(pool *pgxpool.Pool) *SynonymRepo {
	return &SynonymRepo{pool: pool}
}

// LoadAll reads every synonym mapping into memory. Called once per startup and
// after feedback writes; reconciliation itself only reads the snapshot.
func (r *SynonymRepo) LoadAll(ctx context.Context) (map[string]SynonymEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT nombre_factura, codigo_medicamento, COALESCE(metodo, 'Sinónimo') FROM sinonimos_factura`)
	if err != nil {
		return nil, fmt.Errorf("failed to load synonyms: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]SynonymEntry)
	for rows.Next() {
		var nombre string
		var entry SynonymEntry
		if err := rows.Scan(&nombre, &entry.Codigo, &entry.Metodo); err != nil {
			return nil, fmt.Errorf("synonym row scan failed: %w", err)
		}
		mappings[nombre] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("synonym rows failed: %w", err)
	}

	log.Printf("Loaded %d synonym mappings from the database", len(mappings))
	return mappings, nil
}

// UpsertManualCorrection inserts or overwrites the mapping for a normalized
// description, tagged as a manual correction. Last write wins.
func (r *SynonymRepo) UpsertManualCorrection(ctx context.Context, nombreFactura, codigoMedicamento string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sinonimos_factura (nombre_factura, codigo_medicamento, metodo)
		VALUES ($1, $2, 'Manual')
		ON CONFLICT (nombre_factura)
		DO UPDATE SET
			codigo_medicamento = EXCLUDED.codigo_medicamento,
			metodo = 'Manual'
	`, nombreFactura, codigoMedicamento)
	if err != nil {
		return fmt.Errorf("failed to upsert manual correction: %w", err)
	}
	return nil
}
