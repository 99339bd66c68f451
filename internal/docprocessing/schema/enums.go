package schema

// Closed value sets used by the extraction records. A value outside its set
// fails validation; nothing is coerced.

// PatientStatus is the clinical status of the patient.
type PatientStatus string

const (
	PatientStatusActive      PatientStatus = "Active"
	PatientStatusComplicated PatientStatus = "Complicated"
	PatientStatusDeceased    PatientStatus = "Deceased"
	PatientStatusOther       PatientStatus = "Other"
)

// ConditionStatus tracks whether a condition is still present.
type ConditionStatus string

const (
	ConditionStatusActive    ConditionStatus = "Active"
	ConditionStatusRemission ConditionStatus = "Remission"
	ConditionStatusResolved  ConditionStatus = "Resolved"
)

// ComplaintType distinguishes the reason for the visit from past history.
type ComplaintType string

const (
	ComplaintTypeChief ComplaintType = "Chief Complaint"
	ComplaintTypePast  ComplaintType = "Past History"
)

// MedicationType is the context the medication was recorded in.
type MedicationType string

const (
	MedicationTypeHome      MedicationType = "Home"
	MedicationTypePreOp     MedicationType = "Pre-op"
	MedicationTypeInpatient MedicationType = "Inpatient"
)

// ProcedureType categorises bariatric and other surgical procedures.
type ProcedureType string

const (
	ProcedureTypeSleeve     ProcedureType = "Sleeve Gastrectomy"
	ProcedureTypeRNY        ProcedureType = "Gastric Bypass (RNY)"
	ProcedureTypeMGB        ProcedureType = "Mini Gastric Bypass (MGB)"
	ProcedureTypeSASI       ProcedureType = "SASI"
	ProcedureTypeBalloon    ProcedureType = "Gastric Balloon"
	ProcedureTypeRevisional ProcedureType = "Revisional Surgery"
	ProcedureTypeOther      ProcedureType = "Other"
)

// AllergySeverity grades an allergic reaction.
type AllergySeverity string

const (
	AllergySeverityMild            AllergySeverity = "Mild"
	AllergySeverityModerate        AllergySeverity = "Moderate"
	AllergySeveritySevere          AllergySeverity = "Severe"
	AllergySeverityLifeThreatening AllergySeverity = "Life Threatening"
)

// SocialHistoryCategory groups lifestyle habits.
type SocialHistoryCategory string

const (
	SocialHistorySmoking  SocialHistoryCategory = "Smoking"
	SocialHistoryAlcohol  SocialHistoryCategory = "Alcohol"
	SocialHistoryDiet     SocialHistoryCategory = "Diet"
	SocialHistoryExercise SocialHistoryCategory = "Exercise"
)

// LabCategory is the timing of a lab relative to surgery.
type LabCategory string

const (
	LabCategoryPreoperative  LabCategory = "Preoperative"
	LabCategoryPostoperative LabCategory = "Postoperative"
	LabCategoryNonRoutine    LabCategory = "Non-routine"
)

// LabStatus is the reporting status of a lab result.
type LabStatus string

const (
	LabStatusPending   LabStatus = "Pending"
	LabStatusFinal     LabStatus = "Final"
	LabStatusCancelled LabStatus = "Cancelled"
)

// ImagingModality is the kind of imaging study.
type ImagingModality string

const (
	ModalityUltrasound     ImagingModality = "Ultrasound"
	ModalityXRay           ImagingModality = "X-Ray"
	ModalityEchocardiogram ImagingModality = "Echocardiogram"
	ModalityCT             ImagingModality = "CT Scan"
	ModalityMRI            ImagingModality = "MRI"
	ModalityEndoscopy      ImagingModality = "Endoscopy"
	ModalityOther          ImagingModality = "Other"
)

// VisitType separates scheduled from urgent visits.
type VisitType string

const (
	VisitTypeRoutine VisitType = "Routine"
	VisitTypeUrgent  VisitType = "Urgent"
)

// WoundStatus describes the surgical wound at a visit.
type WoundStatus string

const (
	WoundStatusClean    WoundStatus = "Clean"
	WoundStatusInfected WoundStatus = "Infected"
	WoundStatusDehisced WoundStatus = "Dehisced"
	WoundStatusOther    WoundStatus = "Other"
)

// NoteCategory classifies free-form notes.
type NoteCategory string

const (
	NoteCategoryGeneral            NoteCategory = "General"
	NoteCategoryAdministrative     NoteCategory = "Administrative"
	NoteCategorySecondaryProcedure NoteCategory = "Secondary Procedure"
	NoteCategoryCommunication      NoteCategory = "Communication"
	NoteCategoryOther              NoteCategory = "Other"
)

// enumValues lists every closed set by name; the JSON Schema is built from it.
var enumValues = map[string][]string{
	"PatientStatus":         {"Active", "Complicated", "Deceased", "Other"},
	"ConditionStatus":       {"Active", "Remission", "Resolved"},
	"ComplaintType":         {"Chief Complaint", "Past History"},
	"MedicationType":        {"Home", "Pre-op", "Inpatient"},
	"ProcedureType":         {"Sleeve Gastrectomy", "Gastric Bypass (RNY)", "Mini Gastric Bypass (MGB)", "SASI", "Gastric Balloon", "Revisional Surgery", "Other"},
	"AllergySeverity":       {"Mild", "Moderate", "Severe", "Life Threatening"},
	"SocialHistoryCategory": {"Smoking", "Alcohol", "Diet", "Exercise"},
	"LabCategory":           {"Preoperative", "Postoperative", "Non-routine"},
	"LabStatus":             {"Pending", "Final", "Cancelled"},
	"ImagingModality":       {"Ultrasound", "X-Ray", "Echocardiogram", "CT Scan", "MRI", "Endoscopy", "Other"},
	"VisitType":             {"Routine", "Urgent"},
	"WoundStatus":           {"Clean", "Infected", "Dehisced", "Other"},
	"NoteCategory":          {"General", "Administrative", "Secondary Procedure", "Communication", "Other"},
}

// EnumValues returns the allowed values of the named closed set.
func EnumValues(name string) []string {
	vals := enumValues[name]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}
