package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/pkg/config"
)

const (
	noneRecorded   = "None recorded"
	nonePrescribed = "None prescribed"
)

// SummaryRenderer serializes a summary into one output format.
type SummaryRenderer interface {
	Render(summary *entities.PatientSummary) ([]byte, error)
	Extension() string
	ContentType() string
}

// NewSummaryRenderer returns the renderer for format (json or markdown).
func NewSummaryRenderer(format string) (SummaryRenderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", config.FormatJSON:
		return JSONRenderer{}, nil
	case config.FormatMarkdown, "md":
		return MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONRenderer writes the summary as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(summary *entities.PatientSummary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func (JSONRenderer) Extension() string   { return "json" }
func (JSONRenderer) ContentType() string { return "application/json" }

// MarkdownRenderer writes a human-readable patient report.
type MarkdownRenderer struct{}

func (MarkdownRenderer) Extension() string   { return "md" }
func (MarkdownRenderer) ContentType() string { return "text/markdown; charset=utf-8" }

func (MarkdownRenderer) Render(s *entities.PatientSummary) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("summary is required")
	}

	var b strings.Builder
	b.WriteString("# Patient Analysis Report\n\n")

	b.WriteString("## Patient Demographics\n")
	fmt.Fprintf(&b, "- **Patient ID:** %s\n", s.Patient.ID)
	fmt.Fprintf(&b, "- **Name:** %s\n", s.Patient.Name)
	fmt.Fprintf(&b, "- **Date of Birth:** %s\n", orNone(s.Patient.DOB.String()))
	fmt.Fprintf(&b, "- **Age:** %s\n", orNone(s.Patient.Age.String()))
	fmt.Fprintf(&b, "- **Gender:** %s\n", orNone(s.Patient.Gender.String()))
	fmt.Fprintf(&b, "- **Blood Group:** %s\n", orNone(s.Patient.BloodGroup.String()))

	b.WriteString("\n## Summary\n")
	b.WriteString(orNone(s.Summary))
	b.WriteString("\n")

	b.WriteString("\n## Primary Alert\n")
	fmt.Fprintf(&b, "- **Alert:** %s\n", orNone(s.PrimaryAlert.Alert))
	fmt.Fprintf(&b, "- **Special Care:** %s\n", orNone(s.PrimaryAlert.SpecialCare))

	b.WriteString("\n## Chronic Conditions\n")
	if len(s.ChronicConditions) == 0 {
		b.WriteString(noneRecorded + "\n")
	}
	for _, c := range s.ChronicConditions {
		fmt.Fprintf(&b, "- **%s**%s\n", c.Name, details(
			labeled("since", c.Since.String()),
			labeled("status", c.Status),
			c.Notes,
		))
	}

	b.WriteString("\n## Illness History\n")
	if len(s.HistoryTimeline) == 0 {
		b.WriteString(noneRecorded + "\n")
	}
	for i, e := range s.HistoryTimeline {
		fmt.Fprintf(&b, "\n### Illness Event %d (%s)\n", i+1, orNone(e.Date.String()))
		if e.Title != "" {
			fmt.Fprintf(&b, "- **Title:** %s\n", e.Title)
		}
		fmt.Fprintf(&b, "- **Department:** %s\n", orNone(e.Department))
		fmt.Fprintf(&b, "- **Complaints:** %s\n", joinOr(e.Complaints, noneRecorded))
		fmt.Fprintf(&b, "- **Diagnosis:** %s\n", joinOr(e.Diagnosis, noneRecorded))
		fmt.Fprintf(&b, "- **Treatment:** %s\n", joinOr(e.Treatment, noneRecorded))
		fmt.Fprintf(&b, "- **Medications:** %s\n", joinOr(e.Medications, nonePrescribed))
		fmt.Fprintf(&b, "- **Tests:** %s\n", joinOr(e.Tests, noneRecorded))
		fmt.Fprintf(&b, "- **Procedures:** %s\n", joinOr(e.Procedures, noneRecorded))
		fmt.Fprintf(&b, "- **Notes:** %s\n", orNone(e.Notes))
	}

	b.WriteString("\n## Lab Tests\n")
	if len(s.LabTests) == 0 {
		b.WriteString(noneRecorded + "\n")
	} else {
		b.WriteString("| Test | Date | Result | Unit | Reference Range | Status |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, t := range s.LabTests {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				cell(t.Name), cell(t.Date.String()), cell(t.Result.String()), cell(t.Unit), cell(t.ReferenceRange), cell(t.Status))
		}
	}

	b.WriteString("\n## Medications\n")
	if len(s.Medications) == 0 {
		b.WriteString(nonePrescribed + "\n")
	}
	for _, m := range s.Medications {
		fmt.Fprintf(&b, "- **%s**%s\n", m.Name, details(m.Dosage, m.Frequency, m.Duration, m.Purpose, m.Status))
	}

	b.WriteString("\n## Doctors\n")
	if len(s.Doctors) == 0 {
		b.WriteString(noneRecorded + "\n")
	}
	for _, d := range s.Doctors {
		fmt.Fprintf(&b, "- **%s**%s\n", d.Name, details(d.Specialty, d.Hospital, d.Contact))
	}

	b.WriteString("\n## Emergency Contacts\n")
	if len(s.EmergencyContacts) == 0 {
		b.WriteString(noneRecorded + "\n")
	}
	for _, c := range s.EmergencyContacts {
		fmt.Fprintf(&b, "- **%s**%s\n", c.Name, details(c.Relationship, c.Phone))
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "_%s | Generated by %s on %s_\n\n", s.Footer.NotMedicalDocument, s.Footer.GeneratedBy, s.Footer.Date)
	fmt.Fprintf(&b, "_%s_\n", s.Footer.Disclaimer)

	return []byte(b.String()), nil
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return noneRecorded
	}
	return v
}

func joinOr(items []string, fallback string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, ", ")
}

func labeled(label, v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return label + " " + v
}

// details renders the non-empty parts as " (a, b, c)".
func details(parts ...string) string {
	joined := joinOr(parts, "")
	if joined == "" {
		return ""
	}
	return " (" + joined + ")"
}

func cell(v string) string {
	v = strings.ReplaceAll(v, "|", "\\|")
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
