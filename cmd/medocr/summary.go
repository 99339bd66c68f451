package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
)

const (
	listLimit = 3
	labLimit  = 5
)

func printSummary(w io.Writer, result *domain.ExtractionResult) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nMedical Document Analysis Results\n%s\n", rule, rule)

	if !result.Success {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
		return
	}

	fmt.Fprintf(w, "\nFile:   %s\n", result.File)
	fmt.Fprintf(w, "Model:  %s\n", result.Model)
	if result.Timing != nil {
		fmt.Fprintf(w, "Time:   %.1fs\n", result.Timing.TotalSeconds)
	}
	if result.Usage != nil {
		fmt.Fprintf(w, "Tokens: in=%d, out=%d\n", result.Usage.PromptTokens, result.Usage.OutputTokens)
	}

	ex := result.Extraction
	if ex == nil {
		return
	}

	age := "N/A"
	if ex.Patient.Age != nil {
		age = fmt.Sprint(*ex.Patient.Age)
	}
	fmt.Fprintf(w, "\nPatient: %s (Age: %s)\n", ex.Patient.Name, age)
	if ex.Patient.Phone != nil {
		fmt.Fprintf(w, "  Phone: %s\n", *ex.Patient.Phone)
	}

	if n := len(ex.History.Conditions); n > 0 {
		fmt.Fprintf(w, "\nConditions (%d):\n", n)
		for _, c := range ex.History.Conditions[:min(n, listLimit)] {
			fmt.Fprintf(w, "  - %s (%s)\n", c.ConditionName, deref(c.ConditionStatus))
		}
		if n > listLimit {
			fmt.Fprintf(w, "    ... +%d more\n", n-listLimit)
		}
	}

	if n := len(ex.History.Medications); n > 0 {
		fmt.Fprintf(w, "\nMedications (%d):\n", n)
		for _, m := range ex.History.Medications[:min(n, listLimit)] {
			fmt.Fprintf(w, "  - %s %s\n", m.DrugName, deref(m.Dosage))
		}
	}

	if n := len(ex.History.Surgeries); n > 0 {
		fmt.Fprintf(w, "\nSurgeries (%d):\n", n)
		for _, s := range ex.History.Surgeries[:min(n, listLimit)] {
			date := "No date"
			if s.SurgeryDate != nil {
				date = s.SurgeryDate.String()
			}
			fmt.Fprintf(w, "  - %s (%s)\n", s.ProcedureName, date)
		}
	}

	if ex.Labs != nil {
		if n := len(ex.Labs.Labs); n > 0 {
			fmt.Fprintf(w, "\nLabs (%d):\n", n)
			for _, l := range ex.Labs.Labs[:min(n, labLimit)] {
				value, unit := "", ""
				if l.Results != nil {
					value, unit = deref(l.Results.Value), deref(l.Results.Unit)
				}
				fmt.Fprintf(w, "  - %s: %s %s\n", l.TestName, value, unit)
			}
		}
	}

	if n := len(ex.Imaging); n > 0 {
		fmt.Fprintf(w, "\nImaging (%d):\n", n)
		for _, i := range ex.Imaging {
			fmt.Fprintf(w, "  - %s (%s)\n", i.StudyName, deref(i.Modality))
		}
	}
}

func deref[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}
