package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	IngestionDuration   metric.Float64Histogram
	ChunksStored        metric.Int64Counter
	Classifications     metric.Int64Counter
	Answers             metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	StoreOperations     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(ServiceName)

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"ingestion.chunks.stored",
		metric.WithDescription("Chunks stored, split by whether an embedding was produced"),
	)
	if err != nil {
		return nil, err
	}

	classifications, err := meter.Int64Counter(
		"leap.classifications.total",
		metric.WithDescription("LEAP classifications by strategy and status"),
	)
	if err != nil {
		return nil, err
	}

	answers, err := meter.Int64Counter(
		"qa.answers.total",
		metric.WithDescription("Answers by confidence"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	storeOperations, err := meter.Int64Counter(
		"store.operations.total",
		metric.WithDescription("Total store operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		IngestionDuration:   ingestionDuration,
		ChunksStored:        chunksStored,
		Classifications:     classifications,
		Answers:             answers,
		CircuitBreakerState: circuitBreakerState,
		StoreOperations:     storeOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngestion records one document ingestion
func (m *Metrics) RecordIngestion(duration float64, status string, embedded, unembedded int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.IngestionDuration.Record(ctx, duration, metric.WithAttributes(attribute.String("ingestion.status", status)))
	m.ChunksStored.Add(ctx, int64(embedded), metric.WithAttributes(attribute.Bool("chunk.embedded", true)))
	m.ChunksStored.Add(ctx, int64(unembedded), metric.WithAttributes(attribute.Bool("chunk.embedded", false)))
}

// RecordClassification records the strategy and status of a LEAP classification
func (m *Metrics) RecordClassification(strategy, status string) {
	if m == nil {
		return
	}
	m.Classifications.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("leap.strategy", strategy),
		attribute.String("leap.status", status),
	))
}

// RecordAnswer records the confidence of a produced answer
func (m *Metrics) RecordAnswer(confidence string, chunksUsed int) {
	if m == nil {
		return
	}
	m.Answers.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("qa.confidence", confidence),
		attribute.Bool("qa.had_context", chunksUsed > 0),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordStoreOperation records store operation metrics
func (m *Metrics) RecordStoreOperation(operation, backend string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.backend", backend),
		attribute.Bool("store.success", success),
	}

	m.StoreOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
