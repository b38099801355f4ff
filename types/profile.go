package types

import (
	"fmt"
	"sort"
)

// HistoryEvent is one discrete event parsed out of the patient's stored
// history text.
type HistoryEvent struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

type ProfilePatientInfo struct {
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Gender          Gender   `json:"gender"`
	CurrentSymptoms []string `json:"current_symptoms"`
}

// ClinicalProfile is the history aggregation stage output: the structured
// patient merged with everything the record store knows about them.
type ClinicalProfile struct {
	PatientInfo       ProfilePatientInfo `json:"patient_info"`
	MedicalHistory    []HistoryEvent     `json:"medical_history"`
	ChronicConditions []string           `json:"chronic_conditions"`
	Allergies         []string           `json:"allergies"`
}

// Normalize replaces nil slices with empty ones and orders history events
// most recent first. Empty lists are part of the contract, null is not.
func (p *ClinicalProfile) Normalize() {
	if p.PatientInfo.CurrentSymptoms == nil {
		p.PatientInfo.CurrentSymptoms = []string{}
	}
	if p.MedicalHistory == nil {
		p.MedicalHistory = []HistoryEvent{}
	}
	if p.ChronicConditions == nil {
		p.ChronicConditions = []string{}
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	sort.SliceStable(p.MedicalHistory, func(i, j int) bool {
		return p.MedicalHistory[i].Date > p.MedicalHistory[j].Date
	})
}

func (p ClinicalProfile) Validate() error {
	if err := (StructuredPatient{
		Name:     p.PatientInfo.Name,
		Age:      p.PatientInfo.Age,
		Gender:   p.PatientInfo.Gender,
		Symptoms: p.PatientInfo.CurrentSymptoms,
	}).Validate(); err != nil {
		return fmt.Errorf("patient_info: %w", err)
	}
	if p.MedicalHistory == nil || p.ChronicConditions == nil || p.Allergies == nil {
		return fmt.Errorf("history lists must be present, empty lists are allowed")
	}
	for i, ev := range p.MedicalHistory {
		if ev.Description == "" {
			return fmt.Errorf("medical_history[%d] has no description", i)
		}
	}
	return nil
}
