package entities

import "time"

// Verification statuses
const (
	VerificationStatusVerified = "verified"
	VerificationStatusError    = "error"
)

// DocumentImage is a decoded document ready to be sent to the extraction
// model.
type DocumentImage struct {
	FileName string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Extraction is what the extraction model returns for one document.
type Extraction struct {
	DetailedAnalysis   string   `json:"detailed_analysis"`
	ExtractedMedicines []string `json:"extracted_medicines"`
}

// MedicineJudgement is the verdict on one medicine name given web evidence.
type MedicineJudgement struct {
	IfMedicine         string `json:"if_medicine"`
	VerificationResult string `json:"verification_result"`
	CorrectMedicine    string `json:"correct_medicine"`
}

// MedicineVerification is the outcome of verifying one extracted name.
type MedicineVerification struct {
	Medicine           string `json:"medicine"`
	IfMedicine         string `json:"if_medicine"`
	VerificationResult string `json:"verification_result"`
	CorrectMedicine    string `json:"correct_medicine"`
	Status             string `json:"status"`
}

// DocumentAnalysis is the cached result of analyzing one medical record.
// It is written once and never mutated.
type DocumentAnalysis struct {
	PatientID             string                 `json:"patient_id"`
	RecordID              string                 `json:"record_id"`
	SourceFile            string                 `json:"source_file"`
	Analysis              string                 `json:"analysis"`
	ExtractedMedicines    []string               `json:"extracted_medicines"`
	MedicineVerifications []MedicineVerification `json:"medicine_verifications"`
	CreatedAt             time.Time              `json:"created_at"`
}
