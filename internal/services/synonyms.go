package services

import (
	"sync"

	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

// SynonymStore holds the in-memory snapshot of description -> catalog code
// mappings. Reconciliation only reads it; the feedback endpoint writes it.
// Reads take the lock per lookup so a concurrent feedback write never
// corrupts the map; last write for a key wins.
type SynonymStore struct {
	mu       sync.RWMutex
	mappings map[string]db.SynonymEntry
}

// NewSynonymStore wraps an initial snapshot, usually loaded from the database
// at startup. A nil snapshot yields an empty store.
func NewSynonymStore(mappings map[string]db.SynonymEntry) *SynonymStore {
	if mappings == nil {
		mappings = make(map[string]db.SynonymEntry)
	}
	return &SynonymStore{mappings: mappings}
}

// Lookup returns the mapping for a normalized description key, if any.
func (s *SynonymStore) Lookup(clave string) (db.SynonymEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.mappings[clave]
	return entry, ok
}

// Put records or overwrites a manual correction for a normalized key.
func (s *SynonymStore) Put(clave, codigo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[clave] = db.SynonymEntry{Codigo: codigo, Metodo: models.MethodManual}
}

// Replace swaps the whole snapshot, e.g. after a bulk reload.
func (s *SynonymStore) Replace(mappings map[string]db.SynonymEntry) {
	if mappings == nil {
		mappings = make(map[string]db.SynonymEntry)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = mappings
}

// Len reports how many mappings the store currently holds.
func (s *SynonymStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}
