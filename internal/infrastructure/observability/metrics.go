package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	PatientOutcomes   metric.Int64Counter
	RecordsAnalyzed   metric.Int64Counter
	VerificationCount metric.Int64Counter
	StageDuration     metric.Float64Histogram
}

// InitMetrics initializes pipeline metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	patientOutcomes, err := meter.Int64Counter(
		"ayurlekha.patients.processed",
		metric.WithDescription("Patients processed, by terminal state"),
	)
	if err != nil {
		return nil, err
	}

	recordsAnalyzed, err := meter.Int64Counter(
		"ayurlekha.records.analyzed",
		metric.WithDescription("Medical records analyzed, by result"),
	)
	if err != nil {
		return nil, err
	}

	verificationCount, err := meter.Int64Counter(
		"ayurlekha.medicines.verified",
		metric.WithDescription("Medicine verifications, by status"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"ayurlekha.stage.duration",
		metric.WithDescription("Pipeline stage duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PatientOutcomes:   patientOutcomes,
		RecordsAnalyzed:   recordsAnalyzed,
		VerificationCount: verificationCount,
		StageDuration:     stageDuration,
	}, nil
}

// RecordPatientOutcome counts a patient reaching a terminal state
func (m *Metrics) RecordPatientOutcome(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.PatientOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordRecord counts one record with its result (cached, analyzed, failed)
func (m *Metrics) RecordRecord(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.RecordsAnalyzed.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordVerification counts one medicine verification
func (m *Metrics) RecordVerification(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.VerificationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordStage records how long a pipeline stage took
func (m *Metrics) RecordStage(ctx context.Context, stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attribute.String("stage", stage)))
}
