// Package schema defines the structured medical record the model must
// populate, its machine-readable JSON Schema and the strict parser that
// turns a model response into typed records.
package schema

import "encoding/json"

// MedicalExtraction is the root result of a document extraction.
type MedicalExtraction struct {
	Patient   Patient         `json:"patient"`
	History   History         `json:"history"`
	Labs      *LabsExtraction `json:"labs"`
	Imaging   []ImagingEntry  `json:"imaging"`
	Followups []FollowUpEntry `json:"followups"`
	Visits    *ClinicalVisits `json:"visits"`
	Notes     []NoteEntry     `json:"notes"`
}

func (m *MedicalExtraction) UnmarshalJSON(b []byte) error {
	type plain MedicalExtraction
	v := plain{
		Imaging:   []ImagingEntry{},
		Followups: []FollowUpEntry{},
		Notes:     []NoteEntry{},
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = MedicalExtraction(v)
	return nil
}

// Patient holds demographics and clinical baselines.
type Patient struct {
	Name            string         `json:"name"`
	NameAr          *string        `json:"name_ar"`
	Age             *int           `json:"age"`
	Gender          *string        `json:"gender"`
	DOB             *Date          `json:"dob"`
	Phone           *string        `json:"phone"`
	OptionalPhone   *string        `json:"optional_phone"`
	Height          *int           `json:"height"`
	InitialWeight   *float64       `json:"initial_weight"`
	InitialBMI      *float64       `json:"initial_bmi"`
	ClinicAddress   *string        `json:"clinic_address"`
	Residency       *string        `json:"residency"`
	Referral        *string        `json:"referral"`
	CallCenterAgent *string        `json:"call_center_agent"`
	Status          *PatientStatus `json:"status"`
	FirstVisitDate  *Date          `json:"first_visit_date"`
}

func (p *Patient) UnmarshalJSON(b []byte) error {
	type plain Patient
	v := plain{
		Status: ptr(PatientStatusComplicated),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Patient(v)
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
