package schema

// Build returns the JSON Schema (draft 2020-12) for MedicalExtraction. The
// same document is sent to the model as the response schema and compiled
// locally to validate what comes back.
func Build() map[string]any {
	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"title":       "MedicalExtraction",
		"type":        "object",
		"description": "Structured medical record extracted from a clinical document",
		"properties": map[string]any{
			"patient":   describe(patientSchema(), "Patient demographic and baseline data"),
			"history":   describe(historySchema(), "Medical, surgical and social history"),
			"labs":      describe(nullable(labsSchema()), "Pre and post operative laboratory results"),
			"imaging":   describe(array(imagingSchema()), "Radiology and imaging reports"),
			"followups": describe(array(followUpSchema()), "Follow-up call log entries"),
			"visits":    describe(nullable(visitsSchema()), "Clinic visits and physical examinations"),
			"notes":     describe(array(noteSchema()), "General free-form notes and administrative records"),
		},
		"required": []string{"patient", "history"},
	}
}

func patientSchema() map[string]any {
	return obj(map[string]any{
		"name":              describe(str(), "Full name of the patient"),
		"name_ar":           describe(nullable(str()), "Arabic name if present"),
		"age":               describe(nullable(integer()), "Patient age in years"),
		"gender":            describe(nullable(str()), "Gender (e.g. 'Male', 'Female')"),
		"dob":               describe(nullable(date()), "Date of birth"),
		"phone":             describe(nullable(str()), "Primary contact number"),
		"optional_phone":    describe(nullable(str()), "Secondary contact number"),
		"height":            describe(nullable(integer()), "Height in cm"),
		"initial_weight":    describe(nullable(number()), "Initial recorded weight in kg"),
		"initial_bmi":       describe(nullable(number()), "Initial BMI value"),
		"clinic_address":    describe(nullable(str()), "Address or location of the clinic"),
		"residency":         describe(nullable(str()), "Patient's place of residence"),
		"referral":          describe(nullable(str()), "Referral source (doctor name or campaign)"),
		"call_center_agent": describe(nullable(str()), "Agent who handled the patient"),
		"status":            withDefault(nullable(enum("PatientStatus")), string(PatientStatusComplicated)),
		"first_visit_date":  describe(nullable(date()), "Date of the first consultation"),
	}, "name")
}

func historySchema() map[string]any {
	return obj(map[string]any{
		"patientConditions":    array(conditionSchema()),
		"patientMedications":   array(medicationSchema()),
		"patientSurgeries":     array(surgerySchema()),
		"patientAllergies":     array(allergySchema()),
		"patientSocialHistory": array(socialHistorySchema()),
	})
}

func conditionSchema() map[string]any {
	return obj(map[string]any{
		"conditionName":   describe(str(), "Name of the condition or complaint"),
		"conditionStatus": withDefault(nullable(enum("ConditionStatus")), string(ConditionStatusActive)),
		"onsetDate":       nullable(date()),
		"type":            withDefault(nullable(enum("ComplaintType")), string(ComplaintTypeChief)),
		"notes":           withDefault(nullable(str()), ""),
	}, "conditionName")
}

func medicationSchema() map[string]any {
	return obj(map[string]any{
		"drugName":  describe(str(), "Name of the drug"),
		"dosage":    describe(withDefault(nullable(str()), "0"), "Dosage as written, \"0\" if not stated"),
		"frequency": describe(withDefault(nullable(str()), "0"), "Frequency as written, \"0\" if not stated"),
		"type":      withDefault(nullable(enum("MedicationType")), string(MedicationTypeHome)),
		"startDate": nullable(date()),
		"endDate":   nullable(date()),
		"notes":     withDefault(nullable(str()), ""),
	}, "drugName")
}

func surgerySchema() map[string]any {
	return obj(map[string]any{
		"procedureName":   describe(str(), "Name of the surgical procedure"),
		"procedureType":   withDefault(nullable(enum("ProcedureType")), string(ProcedureTypeOther)),
		"surgeryDate":     nullable(date()),
		"hospitalName":    withDefault(nullable(str()), ""),
		"surgeonName":     withDefault(nullable(str()), ""),
		"firstAssistant":  withDefault(nullable(str()), ""),
		"secondAssistant": withDefault(nullable(str()), ""),
		"dissectionBy":    withDefault(nullable(str()), ""),
		"cameraMan":       withDefault(nullable(str()), ""),
		"operativeNotes":  withDefault(nullable(str()), ""),
		"summaryNotes":    withDefault(nullable(str()), ""),
	}, "procedureName")
}

func allergySchema() map[string]any {
	return obj(map[string]any{
		"allergen": describe(str(), "Substance the patient is allergic to"),
		"reaction": withDefault(nullable(str()), ""),
		"severity": withDefault(nullable(enum("AllergySeverity")), string(AllergySeverityMild)),
	}, "allergen")
}

func socialHistorySchema() map[string]any {
	return obj(map[string]any{
		"category": withDefault(nullable(enum("SocialHistoryCategory")), string(SocialHistorySmoking)),
		"value":    describe(str(), "Habit detail (e.g. '1 pack/day')"),
		"notes":    withDefault(nullable(str()), ""),
	}, "value")
}

func labsSchema() map[string]any {
	result := obj(map[string]any{
		"value":           describe(nullable(str()), "Numeric or text result value"),
		"unit":            describe(nullable(str()), "Unit of measurement (e.g. mg/dl)"),
		"reference_range": describe(nullable(stringMap()), "Reference range (e.g. {\"min\": \"13\", \"max\": \"18\"})"),
	})
	entry := obj(map[string]any{
		"testName": describe(str(), "Name of the lab test"),
		"labDate":  describe(nullable(str()), "Date the lab was taken (YYYY-MM-DD)"),
		"results":  nullable(result),
		"category": withDefault(enum("LabCategory"), string(LabCategoryPreoperative)),
		"status":   withDefault(enum("LabStatus"), string(LabStatusFinal)),
		"notes":    describe(nullable(str()), "Clinical notes or flags (e.g. 'High')"),
	}, "testName")
	return obj(map[string]any{
		"labs": array(entry),
	})
}

func imagingSchema() map[string]any {
	return obj(map[string]any{
		"study_name":   describe(str(), "Name of the scan (e.g. 'Abdominal Ultrasound')"),
		"modality":     withDefault(nullable(enum("ImagingModality")), string(ModalityOther)),
		"image_date":   nullable(date()),
		"findings":     describe(nullable(array(str())), "Detailed findings from the report"),
		"impression":   describe(nullable(str()), "Summary conclusion or diagnosis"),
		"preoperative": withDefault(nullable(boolean()), true),
	}, "study_name")
}

func followUpSchema() map[string]any {
	return obj(map[string]any{
		"call_date":            nullable(str()),
		"medication_adherence": nullable(array(str())),
		"symptoms":             nullable(array(str())),
		"diet_activity":        nullable(stringMap()),
		"bowel_urine":          nullable(stringMap()),
		"alarming_signs":       nullable(array(str())),
		"general_notes":        nullable(str()),
	})
}

func visitsSchema() map[string]any {
	visit := obj(map[string]any{
		"visit_date":        nullable(date()),
		"type":              withDefault(nullable(enum("VisitType")), string(VisitTypeRoutine)),
		"weight_kg":         nullable(number()),
		"wound_status":      nullable(enum("WoundStatus")),
		"clinical_findings": nullable(str()),
		"plan":              nullable(str()),
	})
	return obj(map[string]any{
		"visits": array(visit),
	})
}

func noteSchema() map[string]any {
	return obj(map[string]any{
		"title":     withDefault(nullable(str()), "General Note"),
		"category":  withDefault(nullable(enum("NoteCategory")), string(NoteCategoryOther)),
		"content":   describe(str(), "Full text of the note"),
		"note_date": nullable(date()),
	}, "content")
}

func str() map[string]any     { return map[string]any{"type": "string"} }
func integer() map[string]any { return map[string]any{"type": "integer"} }
func number() map[string]any  { return map[string]any{"type": "number"} }
func boolean() map[string]any { return map[string]any{"type": "boolean"} }

func date() map[string]any {
	return map[string]any{"type": "string", "format": "date"}
}

func enum(name string) map[string]any {
	vals := EnumValues(name)
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return map[string]any{"type": "string", "enum": out}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func stringMap() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": str(),
	}
}

func nullable(s map[string]any) map[string]any {
	return map[string]any{
		"anyOf": []any{s, map[string]any{"type": "null"}},
	}
}

func withDefault(s map[string]any, v any) map[string]any {
	s["default"] = v
	return s
}

func describe(s map[string]any, text string) map[string]any {
	s["description"] = text
	return s
}

func obj(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
