package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	before := Collect()

	RecordAudit(10, 7, 3, 125)
	RecordAICall()
	RecordAIFailure()
	RecordDiagnostic("sin_candidatos")
	RecordDiagnostic("sin_candidatos")
	RecordDiagnostic("")

	after := Collect()
	assert.Equal(t, before.AuditsRun+1, after.AuditsRun)
	assert.Equal(t, before.ItemsProcessed+10, after.ItemsProcessed)
	assert.Equal(t, before.ItemsResolved+7, after.ItemsResolved)
	assert.Equal(t, before.ItemsUnresolved+3, after.ItemsUnresolved)
	assert.Equal(t, before.AICalls+1, after.AICalls)
	assert.Equal(t, before.AIFailures+1, after.AIFailures)
	assert.Equal(t, before.Diagnostics["sin_candidatos"]+2, after.Diagnostics["sin_candidatos"])

	// Empty diagnostic codes are never recorded
	_, ok := after.Diagnostics[""]
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	RecordDiagnostic("error_agente")
	snap := Collect()
	snap.Diagnostics["error_agente"] += 100

	fresh := Collect()
	assert.NotEqual(t, snap.Diagnostics["error_agente"], fresh.Diagnostics["error_agente"])
}
