// Package metrics keeps process-wide audit counters. Everything is atomic so
// concurrent audits never lose updates.
package metrics

import (
	"sync"
	"sync/atomic"
)

var (
	auditsRun         atomic.Int64
	itemsProcessed    atomic.Int64
	itemsResolved     atomic.Int64
	itemsUnresolved   atomic.Int64
	aiCalls           atomic.Int64
	aiFailures        atomic.Int64
	totalProcessingMs atomic.Int64

	diagMu sync.Mutex
	diags  = make(map[string]int64)
)

// RecordAudit accumulates the headline numbers of one finished audit run.
func RecordAudit(processed, resolved, unresolved int, durationMs float64) {
	auditsRun.Add(1)
	itemsProcessed.Add(int64(processed))
	itemsResolved.Add(int64(resolved))
	itemsUnresolved.Add(int64(unresolved))
	totalProcessingMs.Add(int64(durationMs))
}

// RecordAICall counts one dispatch to the reasoning service.
func RecordAICall() { aiCalls.Add(1) }

// RecordAIFailure counts one failed or discarded reasoning call.
func RecordAIFailure() { aiFailures.Add(1) }

// RecordDiagnostic counts one per-item diagnostic code.
func RecordDiagnostic(code string) {
	if code == "" {
		return
	}
	diagMu.Lock()
	diags[code]++
	diagMu.Unlock()
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	AuditsRun         int64            `json:"audits_run"`
	ItemsProcessed    int64            `json:"items_procesados"`
	ItemsResolved     int64            `json:"items_conciliados"`
	ItemsUnresolved   int64            `json:"items_no_conciliados"`
	AICalls           int64            `json:"llamadas_ia"`
	AIFailures        int64            `json:"fallos_ia"`
	TotalProcessingMs int64            `json:"tiempo_total_ms"`
	Diagnostics       map[string]int64 `json:"diagnosticos"`
}

// Collect returns the current counters.
func Collect() Snapshot {
	diagMu.Lock()
	d := make(map[string]int64, len(diags))
	for k, v := range diags {
		d[k] = v
	}
	diagMu.Unlock()

	return Snapshot{
		AuditsRun:         auditsRun.Load(),
		ItemsProcessed:    itemsProcessed.Load(),
		ItemsResolved:     itemsResolved.Load(),
		ItemsUnresolved:   itemsUnresolved.Load(),
		AICalls:           aiCalls.Load(),
		AIFailures:        aiFailures.Load(),
		TotalProcessingMs: totalProcessingMs.Load(),
		Diagnostics:       d,
	}
}
