package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunSummary_Counts(t *testing.T) {
	s := &RunSummary{}
	s.Add(&PatientOutcome{PatientID: "a", State: PatientStatePublished})
	s.Add(&PatientOutcome{PatientID: "b", State: PatientStateSkippedNoRecords})
	s.Add(&PatientOutcome{PatientID: "c", State: PatientStatePublished})

	assert.Equal(t, 2, s.Count(PatientStatePublished))
	assert.Equal(t, 0, s.Count(PatientStateFailed))
	assert.Equal(t, map[PatientState]int{
		PatientStatePublished:        2,
		PatientStateSkippedNoRecords: 1,
	}, s.Counts())
}
