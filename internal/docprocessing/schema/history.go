package schema

import "encoding/json"

// History groups the medical, surgical and social background.
type History struct {
	Conditions    []ConditionEntry     `json:"patientConditions"`
	Medications   []MedicationEntry    `json:"patientMedications"`
	Surgeries     []SurgeryEntry       `json:"patientSurgeries"`
	Allergies     []AllergyEntry       `json:"patientAllergies"`
	SocialHistory []SocialHistoryEntry `json:"patientSocialHistory"`
}

func (h *History) UnmarshalJSON(b []byte) error {
	type plain History
	v := plain{
		Conditions:    []ConditionEntry{},
		Medications:   []MedicationEntry{},
		Surgeries:     []SurgeryEntry{},
		Allergies:     []AllergyEntry{},
		SocialHistory: []SocialHistoryEntry{},
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*h = History(v)
	return nil
}

type ConditionEntry struct {
	ConditionName   string           `json:"conditionName"`
	ConditionStatus *ConditionStatus `json:"conditionStatus"`
	OnsetDate       *Date            `json:"onsetDate"`
	Type            *ComplaintType   `json:"type"`
	Notes           *string          `json:"notes"`
}

func (c *ConditionEntry) UnmarshalJSON(b []byte) error {
	type plain ConditionEntry
	v := plain{
		ConditionStatus: ptr(ConditionStatusActive),
		Type:            ptr(ComplaintTypeChief),
		Notes:           ptr(""),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = ConditionEntry(v)
	return nil
}

// MedicationEntry is a single medication line. Dosage and frequency default
// to the literal "0" when the document does not state them.
type MedicationEntry struct {
	DrugName  string          `json:"drugName"`
	Dosage    *string         `json:"dosage"`
	Frequency *string         `json:"frequency"`
	Type      *MedicationType `json:"type"`
	StartDate *Date           `json:"startDate"`
	EndDate   *Date           `json:"endDate"`
	Notes     *string         `json:"notes"`
}

func (m *MedicationEntry) UnmarshalJSON(b []byte) error {
	type plain MedicationEntry
	v := plain{
		Dosage:    ptr("0"),
		Frequency: ptr("0"),
		Type:      ptr(MedicationTypeHome),
		Notes:     ptr(""),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = MedicationEntry(v)
	return nil
}

type SurgeryEntry struct {
	ProcedureName   string         `json:"procedureName"`
	ProcedureType   *ProcedureType `json:"procedureType"`
	SurgeryDate     *Date          `json:"surgeryDate"`
	HospitalName    *string        `json:"hospitalName"`
	SurgeonName     *string        `json:"surgeonName"`
	FirstAssistant  *string        `json:"firstAssistant"`
	SecondAssistant *string        `json:"secondAssistant"`
	DissectionBy    *string        `json:"dissectionBy"`
	CameraMan       *string        `json:"cameraMan"`
	OperativeNotes  *string        `json:"operativeNotes"`
	SummaryNotes    *string        `json:"summaryNotes"`
}

func (s *SurgeryEntry) UnmarshalJSON(b []byte) error {
	type plain SurgeryEntry
	v := plain{
		ProcedureType:   ptr(ProcedureTypeOther),
		HospitalName:    ptr(""),
		SurgeonName:     ptr(""),
		FirstAssistant:  ptr(""),
		SecondAssistant: ptr(""),
		DissectionBy:    ptr(""),
		CameraMan:       ptr(""),
		OperativeNotes:  ptr(""),
		SummaryNotes:    ptr(""),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = SurgeryEntry(v)
	return nil
}

type AllergyEntry struct {
	Allergen string           `json:"allergen"`
	Reaction *string          `json:"reaction"`
	Severity *AllergySeverity `json:"severity"`
}

func (a *AllergyEntry) UnmarshalJSON(b []byte) error {
	type plain AllergyEntry
	v := plain{
		Reaction: ptr(""),
		Severity: ptr(AllergySeverityMild),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = AllergyEntry(v)
	return nil
}

type SocialHistoryEntry struct {
	Category *SocialHistoryCategory `json:"category"`
	Value    string                 `json:"value"`
	Notes    *string                `json:"notes"`
}

func (s *SocialHistoryEntry) UnmarshalJSON(b []byte) error {
	type plain SocialHistoryEntry
	v := plain{
		Category: ptr(SocialHistorySmoking),
		Notes:    ptr(""),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = SocialHistoryEntry(v)
	return nil
}
