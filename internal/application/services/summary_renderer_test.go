package services_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ayurlekha/processing-engine/internal/application/services"
	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *entities.PatientSummary {
	name := "Asha"
	text := "Stable hypertensive patient."
	return entities.ApplySummaryDefaults(&entities.SummaryDraft{
		Patient: &entities.SummaryPatient{Name: name, Age: "54"},
		Summary: &text,
		HistoryTimeline: []entities.HistoryEvent{
			{Date: "2024-01", Department: "Cardiology", Diagnosis: []string{"Hypertension"}},
		},
		Medications: []entities.Medication{{Name: "Amlodipine", Dosage: "5 mg"}},
	}, "p1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func TestNewSummaryRenderer(t *testing.T) {
	r, err := services.NewSummaryRenderer("json")
	require.NoError(t, err)
	assert.Equal(t, "json", r.Extension())

	r, err = services.NewSummaryRenderer("md")
	require.NoError(t, err)
	assert.Equal(t, "md", r.Extension())

	_, err = services.NewSummaryRenderer("pdf")
	assert.Error(t, err)
}

func TestJSONRenderer(t *testing.T) {
	data, err := services.JSONRenderer{}.Render(sampleSummary())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"patient", "summary", "primaryAlert", "chronicConditions", "historyTimeline",
		"labTests", "medications", "doctors", "emergencyContacts", "footer", "meta"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []interface{}{}, decoded["labTests"])
}

func TestMarkdownRenderer(t *testing.T) {
	data, err := services.MarkdownRenderer{}.Render(sampleSummary())
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "# Patient Analysis Report\n"))
	assert.Contains(t, md, "## Patient Demographics\n- **Patient ID:** p1\n- **Name:** Asha\n")
	assert.Contains(t, md, "## Illness History\n")
	assert.Contains(t, md, "### Illness Event 1 (2024-01)\n- **Department:** Cardiology\n")
	assert.Contains(t, md, "- **Diagnosis:** Hypertension\n")
	assert.Contains(t, md, "- **Complaints:** None recorded\n")
	assert.Contains(t, md, "- **Medications:** None prescribed\n")
	assert.Contains(t, md, "- **Amlodipine** (5 mg)\n")
	assert.Contains(t, md, "## Lab Tests\nNone recorded\n")
	assert.Contains(t, md, entities.SummaryDisclaimer)
}
