package providers

import (
	"context"
	"time"
)

// PatientLock prevents two runs from processing the same patient at once.
type PatientLock interface {
	// Acquire returns a release function, or ok=false if another run holds
	// the lock.
	Acquire(ctx context.Context, patientID string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
