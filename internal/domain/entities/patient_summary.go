package entities

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	SummaryVersion            = "1.0"
	SummaryGeneratedBy        = "Ayurlekha App"
	SummaryNotMedicalDocument = "Not a Medical Document"
	SummaryDisclaimer         = "This document is a summary for informational purposes only and does not replace professional medical advice, diagnosis, or treatment. Always consult with a qualified healthcare provider for any medical concerns."
	UnknownPatientName        = "Unknown"
)

// PatientSummary is the published patient-level document. Every field is
// populated once ApplySummaryDefaults has run.
type PatientSummary struct {
	Patient           SummaryPatient     `json:"patient"`
	Summary           string             `json:"summary"`
	PrimaryAlert      PrimaryAlert       `json:"primaryAlert"`
	ChronicConditions []ChronicCondition `json:"chronicConditions"`
	HistoryTimeline   []HistoryEvent     `json:"historyTimeline"`
	LabTests          []LabTest          `json:"labTests"`
	Medications       []Medication       `json:"medications"`
	Doctors           []Doctor           `json:"doctors"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	Footer            SummaryFooter      `json:"footer"`
	Meta              SummaryMeta        `json:"meta"`
}

type SummaryPatient struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	DOB        FlexString `json:"dob"`
	Age        FlexString `json:"age"`
	Gender     FlexString `json:"gender,omitempty"`
	BloodGroup FlexString `json:"bloodGroup"`
}

type PrimaryAlert struct {
	Alert       string `json:"alert"`
	SpecialCare string `json:"specialCare"`
}

type ChronicCondition struct {
	Name   string     `json:"name"`
	Since  FlexString `json:"since,omitempty"`
	Status string     `json:"status,omitempty"`
	Notes  string     `json:"notes,omitempty"`
}

// HistoryEvent is one illness episode or encounter.
type HistoryEvent struct {
	Date        FlexString `json:"date"`
	Title       string     `json:"title,omitempty"`
	Department  string     `json:"department,omitempty"`
	Complaints  []string   `json:"complaints,omitempty"`
	Diagnosis   []string   `json:"diagnosis,omitempty"`
	Treatment   []string   `json:"treatment,omitempty"`
	Medications []string   `json:"medications,omitempty"`
	Tests       []string   `json:"tests,omitempty"`
	Procedures  []string   `json:"procedures,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type LabTest struct {
	Name           string     `json:"name"`
	Date           FlexString `json:"date,omitempty"`
	Result         FlexString `json:"result,omitempty"`
	Unit           string     `json:"unit,omitempty"`
	ReferenceRange string     `json:"referenceRange,omitempty"`
	Status         string     `json:"status,omitempty"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	Status    string `json:"status,omitempty"`
}

type Doctor struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	Hospital  string `json:"hospital,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type SummaryFooter struct {
	Date               string `json:"date"`
	GeneratedBy        string `json:"generatedBy"`
	NotMedicalDocument string `json:"notMedicalDocument"`
	Disclaimer         string `json:"disclaimer"`
}

type SummaryMeta struct {
	Version     string `json:"version"`
	GeneratedAt string `json:"generated_at"`
	PatientID   string `json:"patient_id"`
	UserID      string `json:"user_id"`
}

// SummaryDraft is the raw output of the summarization model. Absent fields
// stay nil so they can be told apart from empty ones.
type SummaryDraft struct {
	Patient           *SummaryPatient    `json:"patient,omitempty"`
	Summary           *string            `json:"summary,omitempty"`
	PrimaryAlert      *PrimaryAlert      `json:"primaryAlert,omitempty"`
	ChronicConditions []ChronicCondition `json:"chronicConditions,omitempty"`
	HistoryTimeline   []HistoryEvent     `json:"historyTimeline,omitempty"`
	LabTests          []LabTest          `json:"labTests,omitempty"`
	Medications       []Medication       `json:"medications,omitempty"`
	Doctors           []Doctor           `json:"doctors,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts,omitempty"`
	Footer            *SummaryFooter     `json:"footer,omitempty"`
	Meta              *SummaryMeta       `json:"meta,omitempty"`
}

// DefaultFooter returns the footer stamped on every summary generated at now.
func DefaultFooter(now time.Time) SummaryFooter {
	return SummaryFooter{
		Date:               now.UTC().Format("2006-01-02"),
		GeneratedBy:        SummaryGeneratedBy,
		NotMedicalDocument: SummaryNotMedicalDocument,
		Disclaimer:         SummaryDisclaimer,
	}
}

// DefaultMeta returns the metadata block for a summary generated at now.
func DefaultMeta(patientID, userID string, now time.Time) SummaryMeta {
	return SummaryMeta{
		Version:     SummaryVersion,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		PatientID:   patientID,
		UserID:      userID,
	}
}

// ApplySummaryDefaults fills every field the draft left out. A nil draft
// yields a summary made only of defaults.
func ApplySummaryDefaults(draft *SummaryDraft, patientID, userID string, now time.Time) *PatientSummary {
	if draft == nil {
		draft = &SummaryDraft{}
	}

	s := &PatientSummary{
		Patient:           SummaryPatient{ID: patientID, Name: UnknownPatientName},
		ChronicConditions: nonNil(draft.ChronicConditions),
		HistoryTimeline:   nonNil(draft.HistoryTimeline),
		LabTests:          nonNil(draft.LabTests),
		Medications:       nonNil(draft.Medications),
		Doctors:           nonNil(draft.Doctors),
		EmergencyContacts: nonNil(draft.EmergencyContacts),
		Footer:            DefaultFooter(now),
		Meta:              DefaultMeta(patientID, userID, now),
	}

	if p := draft.Patient; p != nil {
		s.Patient = *p
		if strings.TrimSpace(s.Patient.ID) == "" {
			s.Patient.ID = patientID
		}
		if strings.TrimSpace(s.Patient.Name) == "" {
			s.Patient.Name = UnknownPatientName
		}
	}
	if draft.Summary != nil {
		s.Summary = *draft.Summary
	}
	if draft.PrimaryAlert != nil {
		s.PrimaryAlert = *draft.PrimaryAlert
	}
	if f := draft.Footer; f != nil {
		s.Footer = mergeFooter(*f, s.Footer)
	}
	if m := draft.Meta; m != nil {
		s.Meta = mergeMeta(*m, s.Meta)
	}
	return s
}

func mergeFooter(got, def SummaryFooter) SummaryFooter {
	if got.Date == "" {
		got.Date = def.Date
	}
	if got.GeneratedBy == "" {
		got.GeneratedBy = def.GeneratedBy
	}
	if got.NotMedicalDocument == "" {
		got.NotMedicalDocument = def.NotMedicalDocument
	}
	if got.Disclaimer == "" {
		got.Disclaimer = def.Disclaimer
	}
	return got
}

func mergeMeta(got, def SummaryMeta) SummaryMeta {
	if got.Version == "" {
		got.Version = def.Version
	}
	if got.GeneratedAt == "" {
		got.GeneratedAt = def.GeneratedAt
	}
	if got.PatientID == "" {
		got.PatientID = def.PatientID
	}
	if got.UserID == "" {
		got.UserID = def.UserID
	}
	return got
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// FlexString decodes from a JSON string, number or boolean. Models are not
// consistent about quoting values like age or dates. An array of scalars is
// joined with ", ".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(string(item)); s != "" {
				parts = append(parts, s)
			}
		}
		*f = FlexString(strings.Join(parts, ", "))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(b))
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
