package types

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityModerate || s == SeverityHigh
}

type Urgency string

const (
	UrgencyRoutine  Urgency = "routine"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyEmergent Urgency = "emergent"
)

func (u Urgency) Valid() bool {
	return u == UrgencyRoutine || u == UrgencyUrgent || u == UrgencyEmergent
}

type PatientSummary struct {
	Name                  string   `json:"name"`
	Age                   int      `json:"age"`
	Gender                Gender   `json:"gender"`
	CurrentSymptoms       []string `json:"current_symptoms"`
	MedicalHistorySummary []string `json:"medical_history_summary"`
}

type AssessmentDetails struct {
	SymptomAnalysis    string   `json:"symptom_analysis"`
	PotentialDiagnoses []string `json:"potential_diagnoses"`
	RiskFactors        []string `json:"risk_factors"`
	Severity           Severity `json:"severity_assessment"`
	Urgency            Urgency  `json:"urgency_level"`
}

type Recommendations struct {
	ImmediateActions []string `json:"immediate_actions"`
	FollowUpCare     []string `json:"follow_up_care"`
	AdditionalTests  []string `json:"additional_tests"`
	Precautions      []string `json:"precautions"`
}

// ClinicalAssessment is the evaluation stage output. Potential diagnoses are
// advisory differentials, never confirmed findings.
type ClinicalAssessment struct {
	PatientSummary  PatientSummary    `json:"patient_summary"`
	Assessment      AssessmentDetails `json:"clinical_assessment"`
	Recommendations Recommendations   `json:"recommendations"`
}

// Normalize lowercases the closed enumerations and replaces nil slices with
// empty ones before validation.
func (a *ClinicalAssessment) Normalize() {
	a.Assessment.Severity = Severity(strings.ToLower(strings.TrimSpace(string(a.Assessment.Severity))))
	a.Assessment.Urgency = Urgency(strings.ToLower(strings.TrimSpace(string(a.Assessment.Urgency))))
	for _, list := range []*[]string{
		&a.PatientSummary.CurrentSymptoms,
		&a.PatientSummary.MedicalHistorySummary,
		&a.Assessment.PotentialDiagnoses,
		&a.Assessment.RiskFactors,
		&a.Recommendations.ImmediateActions,
		&a.Recommendations.FollowUpCare,
		&a.Recommendations.AdditionalTests,
		&a.Recommendations.Precautions,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}

func (a ClinicalAssessment) Validate() error {
	if !a.Assessment.Severity.Valid() {
		return fmt.Errorf("severity_assessment %q is not one of low/moderate/high", a.Assessment.Severity)
	}
	if !a.Assessment.Urgency.Valid() {
		return fmt.Errorf("urgency_level %q is not one of routine/urgent/emergent", a.Assessment.Urgency)
	}
	if strings.TrimSpace(a.Assessment.SymptomAnalysis) != "" && len(a.Assessment.PotentialDiagnoses) == 0 {
		return fmt.Errorf("potential_diagnoses must not be empty when symptom_analysis is present")
	}
	for i, d := range a.Assessment.PotentialDiagnoses {
		if strings.Contains(strings.ToLower(d), "confirmed") {
			return fmt.Errorf("potential_diagnoses[%d] is labeled as confirmed, differentials are advisory only", i)
		}
	}
	return nil
}

// Lists returns every list entry in the assessment. The rendered report must
// contain all of them.
func (a ClinicalAssessment) Lists() [][]string {
	return [][]string{
		a.PatientSummary.CurrentSymptoms,
		a.PatientSummary.MedicalHistorySummary,
		a.Assessment.PotentialDiagnoses,
		a.Assessment.RiskFactors,
		a.Recommendations.ImmediateActions,
		a.Recommendations.FollowUpCare,
		a.Recommendations.AdditionalTests,
		a.Recommendations.Precautions,
	}
}
