package entities

import "time"

// PatientState is the terminal state of one patient in a run.
type PatientState string

const (
	PatientStateSkippedNoRecords  PatientState = "skipped-no-records"
	PatientStateSkippedNoAnalyses PatientState = "skipped-no-analyses"
	PatientStateSkippedLocked     PatientState = "skipped-locked"
	PatientStatePublished         PatientState = "published"
	PatientStateFailed            PatientState = "failed"
)

// PatientOutcome records what happened to one patient.
type PatientOutcome struct {
	PatientID       string       `json:"patient_id"`
	UserID          string       `json:"user_id"`
	State           PatientState `json:"state"`
	RecordsAnalyzed int          `json:"records_analyzed"`
	RecordsFailed   int          `json:"records_failed"`
	SummaryFile     string       `json:"summary_file,omitempty"`
	RemotePath      string       `json:"remote_path,omitempty"`
	Err             error        `json:"-"`
}

// RunSummary aggregates the outcomes of a batch run.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Outcomes   []*PatientOutcome `json:"outcomes"`
}

// Add appends an outcome.
func (s *RunSummary) Add(o *PatientOutcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// Count returns how many patients ended in the given state.
func (s *RunSummary) Count(state PatientState) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Counts returns the number of patients per state.
func (s *RunSummary) Counts() map[PatientState]int {
	counts := make(map[PatientState]int)
	for _, o := range s.Outcomes {
		counts[o.State]++
	}
	return counts
}

// SummaryEvent is broadcast after a summary has been published.
type SummaryEvent struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	PatientID   string    `json:"patient_id"`
	UserID      string    `json:"user_id"`
	Bucket      string    `json:"bucket"`
	RemotePath  string    `json:"remote_path"`
	Format      string    `json:"format"`
	RecordIDs   []string  `json:"record_ids"`
	GeneratedAt time.Time `json:"generated_at"`
}
