package schema

import "encoding/json"

// LabsExtraction wraps the lab results found in the document.
type LabsExtraction struct {
	Labs []LabEntry `json:"labs"`
}

func (l *LabsExtraction) UnmarshalJSON(b []byte) error {
	type plain LabsExtraction
	v := plain{Labs: []LabEntry{}}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = LabsExtraction(v)
	return nil
}

// LabResult is the value, unit and reference range of one lab test.
type LabResult struct {
	Value          *string           `json:"value"`
	Unit           *string           `json:"unit"`
	ReferenceRange map[string]string `json:"reference_range"`
}

type LabEntry struct {
	TestName string      `json:"testName"`
	LabDate  *string     `json:"labDate"`
	Results  *LabResult  `json:"results"`
	Category LabCategory `json:"category"`
	Status   LabStatus   `json:"status"`
	Notes    *string     `json:"notes"`
}

func (l *LabEntry) UnmarshalJSON(b []byte) error {
	type plain LabEntry
	v := plain{
		Category: LabCategoryPreoperative,
		Status:   LabStatusFinal,
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = LabEntry(v)
	return nil
}

type ImagingEntry struct {
	StudyName    string           `json:"study_name"`
	Modality     *ImagingModality `json:"modality"`
	ImageDate    *Date            `json:"image_date"`
	Findings     []string         `json:"findings"`
	Impression   *string          `json:"impression"`
	Preoperative *bool            `json:"preoperative"`
}

func (i *ImagingEntry) UnmarshalJSON(b []byte) error {
	type plain ImagingEntry
	v := plain{
		Modality:     ptr(ModalityOther),
		Preoperative: ptr(true),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*i = ImagingEntry(v)
	return nil
}

// FollowUpEntry is one post-operative follow-up call. Every field is optional
// and defaults to null.
type FollowUpEntry struct {
	CallDate            *string           `json:"call_date"`
	MedicationAdherence []string          `json:"medication_adherence"`
	Symptoms            []string          `json:"symptoms"`
	DietActivity        map[string]string `json:"diet_activity"`
	BowelUrine          map[string]string `json:"bowel_urine"`
	AlarmingSigns       []string          `json:"alarming_signs"`
	GeneralNotes        *string           `json:"general_notes"`
}

// ClinicalVisits wraps the outpatient visits.
type ClinicalVisits struct {
	Visits []VisitEntry `json:"visits"`
}

func (c *ClinicalVisits) UnmarshalJSON(b []byte) error {
	type plain ClinicalVisits
	v := plain{Visits: []VisitEntry{}}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = ClinicalVisits(v)
	return nil
}

type VisitEntry struct {
	VisitDate        *Date        `json:"visit_date"`
	Type             *VisitType   `json:"type"`
	WeightKg         *float64     `json:"weight_kg"`
	WoundStatus      *WoundStatus `json:"wound_status"`
	ClinicalFindings *string      `json:"clinical_findings"`
	Plan             *string      `json:"plan"`
}

func (v *VisitEntry) UnmarshalJSON(b []byte) error {
	type plain VisitEntry
	out := plain{
		Type: ptr(VisitTypeRoutine),
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*v = VisitEntry(out)
	return nil
}

type NoteEntry struct {
	Title    *string       `json:"title"`
	Category *NoteCategory `json:"category"`
	Content  string        `json:"content"`
	NoteDate *Date         `json:"note_date"`
}

func (n *NoteEntry) UnmarshalJSON(b []byte) error {
	type plain NoteEntry
	v := plain{
		Title:    ptr("General Note"),
		Category: ptr(NoteCategoryOther),
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = NoteEntry(v)
	return nil
}
