package entities

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Summarization models drift from the requested schema: lists of plain
// strings instead of objects, numbers where strings are expected, a single
// value where a list is expected. The decoders below accept those shapes.
// A field that still cannot be decoded is left unset so it gets its default
// instead of failing the whole summary.

// UnmarshalJSON decodes each top-level field on its own. List fields keep the
// elements that decode and drop the rest.
func (d *SummaryDraft) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*d = SummaryDraft{
		Patient:           decodeField[SummaryPatient](fields, "patient"),
		PrimaryAlert:      decodeField[PrimaryAlert](fields, "primaryAlert"),
		ChronicConditions: decodeList[ChronicCondition](fields, "chronicConditions"),
		HistoryTimeline:   decodeList[HistoryEvent](fields, "historyTimeline"),
		LabTests:          decodeList[LabTest](fields, "labTests"),
		Medications:       decodeList[Medication](fields, "medications"),
		Doctors:           decodeList[Doctor](fields, "doctors"),
		EmergencyContacts: decodeList[EmergencyContact](fields, "emergencyContacts"),
		Footer:            decodeField[SummaryFooter](fields, "footer"),
		Meta:              decodeField[SummaryMeta](fields, "meta"),
	}
	if s := decodeField[FlexString](fields, "summary"); s != nil {
		summary := s.String()
		d.Summary = &summary
	}
	return nil
}

func decodeField[T any](fields map[string]json.RawMessage, key string) *T {
	raw, ok := fields[key]
	if !ok || isJSONNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// decodeList accepts an array or a single object. Anything else, such as
// "none", yields nil.
func decodeList[T any](fields map[string]json.RawMessage, key string) []T {
	raw, ok := fields[key]
	if !ok || isJSONNull(raw) {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil
		}
		return []T{v}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if isJSONNull(item) {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func isJSONNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// bareString reports whether data is a JSON string and returns it trimmed.
func bareString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// StringList decodes from an array of scalars or a single scalar.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		*l = nil
		return nil
	}
	data = bytes.TrimSpace(data)
	if data[0] != '[' {
		var one FlexString
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if s := strings.TrimSpace(one.String()); s != "" {
			*l = StringList{s}
		} else {
			*l = StringList{}
		}
		return nil
	}

	var items []FlexString
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

func (p *SummaryPatient) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*p = SummaryPatient{Name: s}
		return nil
	}
	var raw struct {
		ID         FlexString `json:"id"`
		Name       FlexString `json:"name"`
		DOB        FlexString `json:"dob"`
		Age        FlexString `json:"age"`
		Gender     FlexString `json:"gender"`
		BloodGroup FlexString `json:"bloodGroup"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = SummaryPatient{
		ID:         raw.ID.String(),
		Name:       raw.Name.String(),
		DOB:        raw.DOB,
		Age:        raw.Age,
		Gender:     raw.Gender,
		BloodGroup: raw.BloodGroup,
	}
	return nil
}

func (a *PrimaryAlert) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*a = PrimaryAlert{Alert: s}
		return nil
	}
	var raw struct {
		Alert       FlexString `json:"alert"`
		SpecialCare FlexString `json:"specialCare"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = PrimaryAlert{Alert: raw.Alert.String(), SpecialCare: raw.SpecialCare.String()}
	return nil
}

func (c *ChronicCondition) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*c = ChronicCondition{Name: s}
		return nil
	}
	var raw struct {
		Name   FlexString `json:"name"`
		Since  FlexString `json:"since"`
		Status FlexString `json:"status"`
		Notes  FlexString `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ChronicCondition{
		Name:   raw.Name.String(),
		Since:  raw.Since,
		Status: raw.Status.String(),
		Notes:  raw.Notes.String(),
	}
	return nil
}

func (e *HistoryEvent) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*e = HistoryEvent{Title: s}
		return nil
	}
	var raw struct {
		Date        FlexString `json:"date"`
		Title       FlexString `json:"title"`
		Department  FlexString `json:"department"`
		Complaints  StringList `json:"complaints"`
		Diagnosis   StringList `json:"diagnosis"`
		Treatment   StringList `json:"treatment"`
		Medications StringList `json:"medications"`
		Tests       StringList `json:"tests"`
		Procedures  StringList `json:"procedures"`
		Notes       FlexString `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = HistoryEvent{
		Date:        raw.Date,
		Title:       raw.Title.String(),
		Department:  raw.Department.String(),
		Complaints:  raw.Complaints,
		Diagnosis:   raw.Diagnosis,
		Treatment:   raw.Treatment,
		Medications: raw.Medications,
		Tests:       raw.Tests,
		Procedures:  raw.Procedures,
		Notes:       raw.Notes.String(),
	}
	return nil
}

func (t *LabTest) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*t = LabTest{Name: s}
		return nil
	}
	var raw struct {
		Name           FlexString `json:"name"`
		Date           FlexString `json:"date"`
		Result         FlexString `json:"result"`
		Unit           FlexString `json:"unit"`
		ReferenceRange FlexString `json:"referenceRange"`
		Status         FlexString `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = LabTest{
		Name:           raw.Name.String(),
		Date:           raw.Date,
		Result:         raw.Result,
		Unit:           raw.Unit.String(),
		ReferenceRange: raw.ReferenceRange.String(),
		Status:         raw.Status.String(),
	}
	return nil
}

func (m *Medication) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*m = Medication{Name: s}
		return nil
	}
	var raw struct {
		Name      FlexString `json:"name"`
		Dosage    FlexString `json:"dosage"`
		Frequency FlexString `json:"frequency"`
		Duration  FlexString `json:"duration"`
		Purpose   FlexString `json:"purpose"`
		Status    FlexString `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Medication{
		Name:      raw.Name.String(),
		Dosage:    raw.Dosage.String(),
		Frequency: raw.Frequency.String(),
		Duration:  raw.Duration.String(),
		Purpose:   raw.Purpose.String(),
		Status:    raw.Status.String(),
	}
	return nil
}

func (d *Doctor) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*d = Doctor{Name: s}
		return nil
	}
	var raw struct {
		Name      FlexString `json:"name"`
		Specialty FlexString `json:"specialty"`
		Hospital  FlexString `json:"hospital"`
		Contact   FlexString `json:"contact"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Doctor{
		Name:      raw.Name.String(),
		Specialty: raw.Specialty.String(),
		Hospital:  raw.Hospital.String(),
		Contact:   raw.Contact.String(),
	}
	return nil
}

func (c *EmergencyContact) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*c = EmergencyContact{Name: s}
		return nil
	}
	var raw struct {
		Name         FlexString `json:"name"`
		Relationship FlexString `json:"relationship"`
		Phone        FlexString `json:"phone"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = EmergencyContact{
		Name:         raw.Name.String(),
		Relationship: raw.Relationship.String(),
		Phone:        raw.Phone.String(),
	}
	return nil
}
