package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service"})

var ingestFiles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_files_total",
	Help: "Files seen by the ingestion pipeline labelled by path and outcome",
}, []string{"path", "outcome"})

var chunksUploaded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_chunks_uploaded_total",
	Help: "Chunks accepted by the vector store",
})

var batchFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_batch_failures_total",
	Help: "Chunk batches rejected by the vector store",
})

var enrichmentDegraded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "enrichment_degraded_total",
	Help: "Metadata enrichments that fell back to defaults",
})

var binaryProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "binary_processed_total",
	Help: "Binary post-processing results labelled by outcome",
}, []string{"outcome"})

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func RecordFile(path, outcome string) {
	ingestFiles.WithLabelValues(path, outcome).Inc()
}

func AddChunksUploaded(n int) {
	chunksUploaded.Add(float64(n))
}

func IncrementBatchFailures() {
	batchFailures.Inc()
}

func IncrementEnrichmentDegraded() {
	enrichmentDegraded.Inc()
}

func RecordBinaryProcessed(outcome string) {
	binaryProcessed.WithLabelValues(outcome).Inc()
}
