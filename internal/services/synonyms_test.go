package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/models"
)

func TestSynonymStoreLookup(t *testing.T) {
	store := NewSynonymStore(map[string]db.SynonymEntry{
		"PARACETAMOL 500 MG": {Codigo: "111", Metodo: models.MethodSinonimo},
	})

	entry, ok := store.Lookup("PARACETAMOL 500 MG")
	require.True(t, ok)
	assert.Equal(t, "111", entry.Codigo)

	_, ok = store.Lookup("DESCONOCIDO")
	assert.False(t, ok)
}

func TestSynonymStorePutMarksManual(t *testing.T) {
	store := NewSynonymStore(nil)
	store.Put("GASA CHICA", "333")

	entry, ok := store.Lookup("GASA CHICA")
	require.True(t, ok)
	assert.Equal(t, "333", entry.Codigo)
	assert.Equal(t, models.MethodManual, entry.Metodo)
	assert.Equal(t, 1, store.Len())
}

func TestSynonymStorePutOverwrites(t *testing.T) {
	store := NewSynonymStore(map[string]db.SynonymEntry{
		"GASA CHICA": {Codigo: "333", Metodo: models.MethodSinonimo},
	})

	store.Put("GASA CHICA", "999")

	entry, _ := store.Lookup("GASA CHICA")
	assert.Equal(t, "999", entry.Codigo)
	assert.Equal(t, models.MethodManual, entry.Metodo)
	assert.Equal(t, 1, store.Len())
}

func TestSynonymStoreReplace(t *testing.T) {
	store := NewSynonymStore(map[string]db.SynonymEntry{
		"A A": {Codigo: "1"},
	})

	store.Replace(map[string]db.SynonymEntry{
		"B B": {Codigo: "2"},
		"C C": {Codigo: "3"},
	})

	assert.Equal(t, 2, store.Len())
	_, ok := store.Lookup("A A")
	assert.False(t, ok)
}
