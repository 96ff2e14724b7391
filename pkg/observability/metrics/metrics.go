package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	runsStarted      atomic.Int64
	runsCompleted    atomic.Int64
	runsDegraded     atomic.Int64
	runsFailed       atomic.Int64
	recordsExtracted atomic.Int64
	chunksFailed     atomic.Int64
	activeRuns       atomic.Int64
)

func RunStarted() {
	runsStarted.Add(1)
	activeRuns.Add(1)
}

func RunFinished(status string, records, failedChunks int) {
	activeRuns.Add(-1)
	recordsExtracted.Add(int64(records))
	chunksFailed.Add(int64(failedChunks))

	switch status {
	case "completed":
		runsCompleted.Add(1)
	case "degraded":
		runsDegraded.Add(1)
	case "failed":
		runsFailed.Add(1)
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP datagem_sync_runs_started_total Number of sync runs started since process start.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_runs_started_total counter\n")
	fmt.Fprintf(w, "datagem_sync_runs_started_total %d\n", runsStarted.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_runs_completed_total Number of sync runs that finished with every chunk stored.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_runs_completed_total counter\n")
	fmt.Fprintf(w, "datagem_sync_runs_completed_total %d\n", runsCompleted.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_runs_degraded_total Number of sync runs that finished but lost one or more chunks.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_runs_degraded_total counter\n")
	fmt.Fprintf(w, "datagem_sync_runs_degraded_total %d\n", runsDegraded.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_runs_failed_total Number of sync runs that ended in an error.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_runs_failed_total counter\n")
	fmt.Fprintf(w, "datagem_sync_runs_failed_total %d\n", runsFailed.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_records_extracted_total Number of records extracted across all runs.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_records_extracted_total counter\n")
	fmt.Fprintf(w, "datagem_sync_records_extracted_total %d\n", recordsExtracted.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_chunks_failed_total Number of record chunks that could not be stored.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_chunks_failed_total counter\n")
	fmt.Fprintf(w, "datagem_sync_chunks_failed_total %d\n", chunksFailed.Load())

	fmt.Fprintf(w, "# HELP datagem_sync_active_runs Number of sync runs currently executing.\n")
	fmt.Fprintf(w, "# TYPE datagem_sync_active_runs gauge\n")
	fmt.Fprintf(w, "datagem_sync_active_runs %d\n", activeRuns.Load())
}
