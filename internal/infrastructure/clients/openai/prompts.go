package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

const extractionSystemPrompt = `You read scanned or handwritten medical documents (prescriptions, lab reports, discharge summaries).
Return ONLY valid JSON with this schema:
{
  "detailed_analysis": string (everything clinically relevant in the document: dates, department, hospital, doctor, complaints, diagnosis, vitals, test results with units and ranges, treatment, advice),
  "extracted_medicines": string[] (every medicine name exactly as written, one entry per medicine, no dosage)
}
Transcribe faithfully. If a word is illegible write [illegible]. Do not invent values.`

const summarySystemPrompt = `You build a patient summary from the combined analyses of their medical documents.
Return ONLY valid JSON with this schema (omit any field you have no information for):
{
  "patient": {"name": string, "dob": string, "age": string, "gender": string, "bloodGroup": string},
  "summary": string (3-6 sentences, plain language),
  "primaryAlert": {"alert": string (allergies or critical conditions), "specialCare": string},
  "chronicConditions": [{"name": string, "since": string, "status": string, "notes": string}],
  "historyTimeline": [{"date": string, "title": string, "department": string, "complaints": string[], "diagnosis": string[], "treatment": string[], "medications": string[], "tests": string[], "procedures": string[], "notes": string}],
  "labTests": [{"name": string, "date": string, "result": string, "unit": string, "referenceRange": string, "status": string}],
  "medications": [{"name": string, "dosage": string, "frequency": string, "duration": string, "purpose": string, "status": string}],
  "doctors": [{"name": string, "specialty": string, "hospital": string, "contact": string}],
  "emergencyContacts": [{"name": string, "relationship": string, "phone": string}]
}
Order historyTimeline oldest first. Use only facts present in the history.`

const verificationSystemPrompt = `You verify whether a name extracted from a medical document is a real pharmaceutical drug or medication, using the web search evidence provided.
Return ONLY valid JSON with this schema:
{
  "if_medicine": "yes" | "no" | "uncertain",
  "verification_result": string (short explanation citing the evidence),
  "correct_medicine": string (the correctly spelled medicine name, or "" if it is not a medicine)
}`

func buildExtractionUserPrompt(fileName string) string {
	return fmt.Sprintf("Analyze the attached medical document (%s).", fileName)
}

func buildSummaryUserPrompt(history, patientID, userID string) string {
	return fmt.Sprintf("Patient ID: %s\nUser ID: %s\n\nMedical history:\n%s", patientID, userID, history)
}

func buildVerificationUserPrompt(name, question, evidence string) string {
	return fmt.Sprintf("Medicine name: %s\nQuestion: %s\n\nWeb search evidence:\n%s", name, question, evidence)
}

type judgementPayload struct {
	IfMedicine         entities.FlexString `json:"if_medicine"`
	VerificationResult string              `json:"verification_result"`
	CorrectMedicine    string              `json:"correct_medicine"`
}

func parseExtraction(text string) (*entities.Extraction, error) {
	var payload entities.Extraction
	if err := json.Unmarshal([]byte(extractJSONFromText(text)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction payload: %w", err)
	}
	if strings.TrimSpace(payload.DetailedAnalysis) == "" {
		return nil, fmt.Errorf("extraction payload has no detailed_analysis")
	}
	medicines := payload.ExtractedMedicines[:0]
	for _, m := range payload.ExtractedMedicines {
		if m = strings.TrimSpace(m); m != "" {
			medicines = append(medicines, m)
		}
	}
	payload.ExtractedMedicines = medicines
	return &payload, nil
}

func parseSummaryDraft(text string) (*entities.SummaryDraft, error) {
	var draft entities.SummaryDraft
	if err := json.Unmarshal([]byte(extractJSONFromText(text)), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse summary payload: %w", err)
	}
	return &draft, nil
}

func parseJudgement(text string) (*entities.MedicineJudgement, error) {
	var payload judgementPayload
	if err := json.Unmarshal([]byte(extractJSONFromText(text)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse verification payload: %w", err)
	}
	return &entities.MedicineJudgement{
		IfMedicine:         strings.ToLower(strings.TrimSpace(payload.IfMedicine.String())),
		VerificationResult: payload.VerificationResult,
		CorrectMedicine:    payload.CorrectMedicine,
	}, nil
}

// extractJSONFromText strips code fences and surrounding prose from a model
// reply, returning the outermost JSON object or array.
func extractJSONFromText(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "```") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "```"))
		if i := strings.Index(rest, "\n"); i >= 0 {
			rest = rest[i+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		raw = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		if i := strings.Index(raw, "{"); i >= 0 {
			if j := strings.LastIndex(raw, "}"); j > i {
				return strings.TrimSpace(raw[i : j+1])
			}
		}
	}
	return raw
}
