package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/observability"
	"github.com/ayurlekha/processing-engine/pkg/retry"
	"github.com/rs/zerolog/log"
)

// DefaultVerificationDelay is the pause between two medicine lookups.
const DefaultVerificationDelay = 2 * time.Second

// MedicineVerifier checks extracted medicine names against web search
// evidence, one at a time.
type MedicineVerifier struct {
	searcher providers.WebSearcher
	judge    providers.MedicineJudge
	retryCfg retry.Config
	delay    time.Duration
	metrics  *observability.Metrics
}

// NewMedicineVerifier creates a verifier. judge may be nil, in which case
// the raw search evidence is kept as the verification result.
func NewMedicineVerifier(searcher providers.WebSearcher, judge providers.MedicineJudge, maxAttempts int, delay time.Duration, metrics *observability.Metrics) *MedicineVerifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay < 0 {
		delay = 0
	}
	return &MedicineVerifier{
		searcher: searcher,
		judge:    judge,
		retryCfg: retry.SearchConfig(maxAttempts),
		delay:    delay,
		metrics:  metrics,
	}
}

// SetRetryConfig overrides the search retry policy.
func (v *MedicineVerifier) SetRetryConfig(cfg retry.Config) {
	v.retryCfg = cfg
}

// VerifyAll verifies names in order, one result per name, waiting between
// lookups. Duplicates are verified again.
func (v *MedicineVerifier) VerifyAll(ctx context.Context, names []string) []entities.MedicineVerification {
	results := make([]entities.MedicineVerification, 0, len(names))
	for i, name := range names {
		if i > 0 {
			if err := sleep(ctx, v.delay); err != nil {
				v.recordFailure(ctx)
				results = append(results, failedVerification(name, err))
				continue
			}
		}
		results = append(results, v.Verify(ctx, name))
	}
	return results
}

// Verify searches the web for name and has the judge assess the evidence.
// It never fails; problems are reported in the result.
func (v *MedicineVerifier) Verify(ctx context.Context, name string) entities.MedicineVerification {
	ctx, span := observability.StartSpan(ctx, "medicine.verify")
	defer span.End()

	evidence := v.searchEvidence(ctx, name)

	if v.judge == nil {
		v.metrics.RecordVerification(ctx, entities.VerificationStatusVerified)
		return entities.MedicineVerification{
			Medicine:           name,
			VerificationResult: evidence,
			Status:             entities.VerificationStatusVerified,
		}
	}

	question := fmt.Sprintf("Verify if '%s' is a real pharmaceutical drug or medication", name)
	judgement, err := v.judge.JudgeMedicine(ctx, name, question, evidence)
	if err == nil && judgement == nil {
		err = fmt.Errorf("empty judgement")
	}
	if err != nil {
		observability.RecordError(span, err)
		log.Warn().Err(err).Str("medicine", name).Str("operation", "verify_medicine").Msg("Medicine judgement failed")
		v.recordFailure(ctx)
		return failedVerification(name, err)
	}

	v.metrics.RecordVerification(ctx, entities.VerificationStatusVerified)
	return entities.MedicineVerification{
		Medicine:           name,
		IfMedicine:         judgement.IfMedicine,
		VerificationResult: judgement.VerificationResult,
		CorrectMedicine:    judgement.CorrectMedicine,
		Status:             entities.VerificationStatusVerified,
	}
}

// searchEvidence returns search results for name, or a failure message once
// every attempt has failed.
func (v *MedicineVerifier) searchEvidence(ctx context.Context, name string) string {
	query := fmt.Sprintf("%s drug medication pharmaceutical", name)

	var evidence string
	var lastErr error
	err := retry.DoWithLog(ctx, v.retryCfg, "web search",
		func() error {
			result, err := v.searcher.Search(ctx, query)
			if err != nil {
				lastErr = err
				return err
			}
			evidence = result
			return nil
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).
				Str("medicine", name).
				Int("attempt", attempt).
				Int("max_attempts", v.retryCfg.MaxAttempts).
				Dur("retry_in", nextDelay).
				Msg("Web search failed")
		},
	)
	if err == nil {
		return evidence
	}

	attempts := v.retryCfg.MaxAttempts
	if lastErr == nil {
		return fmt.Sprintf("Web search verification failed after %d attempts.", attempts)
	}
	return fmt.Sprintf("Web search verification failed after %d attempts: %v", attempts, lastErr)
}

func (v *MedicineVerifier) recordFailure(ctx context.Context) {
	v.metrics.RecordVerification(ctx, entities.VerificationStatusError)
}

func failedVerification(name string, err error) entities.MedicineVerification {
	return entities.MedicineVerification{
		Medicine:           name,
		VerificationResult: fmt.Sprintf("Verification failed: %v", err),
		Status:             entities.VerificationStatusError,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
