package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"clinsight.com/cra/types"
)

func testProfile() types.ClinicalProfile {
	return types.ClinicalProfile{
		PatientInfo: types.ProfilePatientInfo{
			Name:            "Jane Doe",
			Age:             34,
			Gender:          types.GenderFemale,
			CurrentSymptoms: []string{"Chronic cough", "Low-grade fever"},
		},
		MedicalHistory: []types.HistoryEvent{
			{Date: "2024-03-01", Description: "Diagnosed with mild asthma"},
		},
		ChronicConditions: []string{"Asthma"},
		Allergies:         []string{"Penicillin"},
	}
}

func TestEvaluateForcesSummaryIdentity(t *testing.T) {
	client := &llmMock{responses: []string{`{
		"patient_summary": {"name": "Wrong Name", "age": 99, "gender": "male"},
		"clinical_assessment": {
			"symptom_analysis": "Cough with low-grade fever in an asthmatic patient",
			"potential_diagnoses": ["Possible bronchitis"],
			"risk_factors": ["Asthma"],
			"severity_assessment": "Moderate",
			"urgency_level": "ROUTINE"
		},
		"recommendations": {"immediate_actions": ["Rest"], "follow_up_care": [], "additional_tests": [], "precautions": []}
	}`}}
	evaluator := NewEvaluator(client)

	profile := testProfile()
	assessment, err := evaluator.Evaluate(context.Background(), profile)
	require.NoError(t, err)

	require.Equal(t, profile.PatientInfo.Name, assessment.PatientSummary.Name)
	require.Equal(t, profile.PatientInfo.Age, assessment.PatientSummary.Age)
	require.Equal(t, profile.PatientInfo.Gender, assessment.PatientSummary.Gender)
	require.Equal(t, profile.PatientInfo.CurrentSymptoms, assessment.PatientSummary.CurrentSymptoms)
	require.Equal(t, types.SeverityModerate, assessment.Assessment.Severity)
	require.Equal(t, types.UrgencyRoutine, assessment.Assessment.Urgency)
}

func TestEvaluateRejectsUnknownSeverity(t *testing.T) {
	client := &llmMock{responses: []string{`{
		"clinical_assessment": {
			"symptom_analysis": "something",
			"potential_diagnoses": ["Possible bronchitis"],
			"severity_assessment": "catastrophic",
			"urgency_level": "routine"
		}
	}`}}
	evaluator := NewEvaluator(client)

	_, err := evaluator.Evaluate(context.Background(), testProfile())
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "ClinicalAssessment", schemaErr.Schema)
}

func TestEvaluateRejectsConfirmedDiagnosis(t *testing.T) {
	client := &llmMock{responses: []string{`{
		"clinical_assessment": {
			"symptom_analysis": "something",
			"potential_diagnoses": ["Confirmed pneumonia"],
			"severity_assessment": "high",
			"urgency_level": "urgent"
		}
	}`}}
	evaluator := NewEvaluator(client)

	_, err := evaluator.Evaluate(context.Background(), testProfile())
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestEvaluateWrapsModelFailure(t *testing.T) {
	client := &llmMock{err: errors.New("rate limited")}
	evaluator := NewEvaluator(client)

	_, err := evaluator.Evaluate(context.Background(), testProfile())
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}
