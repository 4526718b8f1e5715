package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medaudit/invoice-audit-service/internal/models"
)

// fakeAgent returns a canned verdict per description. Safe under the
// disambiguator's concurrent fan-out.
type fakeAgent struct {
	mu       sync.Mutex
	verdicts map[string]models.ConciliationVerdict
	failOn   map[string]bool
	calls    int
}

func (f *fakeAgent) Conciliate(ctx context.Context, descripcion string, cantidad decimal.Decimal, candidatos []models.Candidate) (models.ConciliationVerdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failOn[descripcion] {
		return models.ConciliationVerdict{}, errors.New("model timeout")
	}
	return f.verdicts[descripcion], nil
}

func pendingItem(descripcion string, candidatos ...models.Candidate) PendingItem {
	p := PendingItem{
		Item: models.AggregatedItem{
			ClaveNormalizada: descripcion,
			Descripcion:      descripcion,
			CantidadTotal:    decimal.NewFromInt(1),
		},
		Candidatos: candidatos,
	}
	if len(candidatos) > 0 {
		p.MejorIntento = &models.BestAttempt{NombreBD: candidatos[0].Nombre, Score: candidatos[0].Score}
	}
	return p
}

func TestDisambiguatorEmptyInput(t *testing.T) {
	d := NewDisambiguator(&fakeAgent{})
	resolved, unresolved := d.Run(context.Background(), nil)
	assert.Nil(t, resolved)
	assert.Nil(t, unresolved)
}

func TestDisambiguatorResolvesWithCandidateScore(t *testing.T) {
	candidate := models.Candidate{Codigo: "55856", Nombre: "ACIDO FOLICO 5 MG", Precio: ptrDecimal(80), Score: 87.5}
	agent := &fakeAgent{
		verdicts: map[string]models.ConciliationVerdict{
			// The model's self-reported confidence is deliberately different
			// from the candidate's measured score.
			"AC FOLICO 5MG": {Codigo: "55856", Confianza: 99},
		},
	}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), []PendingItem{
		pendingItem("AC FOLICO 5MG", candidate),
	})

	assert.Empty(t, unresolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "55856", resolved[0].CodigoBD)
	assert.Equal(t, "ACIDO FOLICO 5 MG", resolved[0].NombreBD)
	assert.Equal(t, models.MethodIAFuzzy, resolved[0].Metodo)
	assert.Equal(t, 87.5, resolved[0].Confianza)
}

func TestDisambiguatorNoCandidatesSkipsAgent(t *testing.T) {
	agent := &fakeAgent{}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), []PendingItem{
		pendingItem("PRODUCTO RARO"),
	})

	assert.Empty(t, resolved)
	require.Len(t, unresolved, 1)
	assert.Nil(t, unresolved[0].MejorIntento)
	assert.Equal(t, 0, agent.calls)
}

func TestDisambiguatorOneFailureDoesNotPoisonSiblings(t *testing.T) {
	okCandidate := models.Candidate{Codigo: "1", Nombre: "MED UNO", Score: 80}
	badCandidate := models.Candidate{Codigo: "2", Nombre: "MED DOS", Score: 70}
	agent := &fakeAgent{
		verdicts: map[string]models.ConciliationVerdict{
			"ITEM OK": {Codigo: "1"},
		},
		failOn: map[string]bool{"ITEM ROTO": true},
	}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), []PendingItem{
		pendingItem("ITEM OK", okCandidate),
		pendingItem("ITEM ROTO", badCandidate),
	})

	require.Len(t, resolved, 1)
	assert.Equal(t, "1", resolved[0].CodigoBD)

	require.Len(t, unresolved, 1)
	assert.Equal(t, "ITEM ROTO", unresolved[0].Descripcion)
	require.NotNil(t, unresolved[0].MejorIntento)
	assert.Equal(t, "MED DOS", unresolved[0].MejorIntento.NombreBD)
}

func TestDisambiguatorEmptyCodeMeansNoMatch(t *testing.T) {
	candidate := models.Candidate{Codigo: "9", Nombre: "MED NUEVE", Score: 60}
	agent := &fakeAgent{
		verdicts: map[string]models.ConciliationVerdict{
			"ITEM DUDOSO": {Codigo: ""},
		},
	}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), []PendingItem{
		pendingItem("ITEM DUDOSO", candidate),
	})

	assert.Empty(t, resolved)
	require.Len(t, unresolved, 1)
	require.NotNil(t, unresolved[0].MejorIntento)
	assert.Equal(t, "MED NUEVE", unresolved[0].MejorIntento.NombreBD)
}

func TestDisambiguatorRejectsHallucinatedCode(t *testing.T) {
	candidate := models.Candidate{Codigo: "10", Nombre: "MED DIEZ", Score: 60}
	agent := &fakeAgent{
		verdicts: map[string]models.ConciliationVerdict{
			"ITEM INVENTADO": {Codigo: "99999", Confianza: 95},
		},
	}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), []PendingItem{
		pendingItem("ITEM INVENTADO", candidate),
	})

	assert.Empty(t, resolved)
	require.Len(t, unresolved, 1)
}

func TestDisambiguatorFansOutAllItems(t *testing.T) {
	agent := &fakeAgent{verdicts: map[string]models.ConciliationVerdict{}}

	var pending []PendingItem
	for _, desc := range []string{"A A", "B B", "C C", "D D", "E E"} {
		pending = append(pending, pendingItem(desc, models.Candidate{Codigo: "x", Nombre: desc, Score: 50}))
	}

	d := NewDisambiguator(agent)
	resolved, unresolved := d.Run(context.Background(), pending)

	assert.Empty(t, resolved)
	assert.Len(t, unresolved, 5)
	assert.Equal(t, 5, agent.calls)
}
