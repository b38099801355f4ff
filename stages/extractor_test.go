package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"clinsight.com/cra/types"
)

func testIntake() types.PatientInput {
	return types.PatientInput{
		PatientID:   "1234567890",
		Name:        "Jane Doe",
		Age:         34,
		Gender:      types.GenderFemale,
		RawSymptoms: "persistent cough and mild fever",
	}
}

func TestExtractStandardizesSymptoms(t *testing.T) {
	client := &llmMock{responses: []string{`{
		"name": "J. Doe",
		"age": 99,
		"gender": "other",
		"symptoms": ["persistent cough", "Mild Fever", "persistent cough"]
	}`}}
	extractor := NewExtractor(client, types.DefaultTerminology())

	patient, err := extractor.Extract(context.Background(), testIntake())
	require.NoError(t, err)

	require.Equal(t, "Jane Doe", patient.Name)
	require.Equal(t, 34, patient.Age)
	require.Equal(t, types.GenderFemale, patient.Gender)
	require.Equal(t, []string{"Chronic cough", "Low-grade fever"}, patient.Symptoms)
	require.Len(t, client.calls, 1)
	require.Equal(t, extractorRole, client.calls[0].role)
}

func TestExtractFallsBackToRawSymptoms(t *testing.T) {
	client := &llmMock{responses: []string{`{"symptoms": []}`}}
	extractor := NewExtractor(client, types.DefaultTerminology())

	patient, err := extractor.Extract(context.Background(), testIntake())
	require.NoError(t, err)
	require.Equal(t, []string{"Chronic cough", "Low-grade fever"}, patient.Symptoms)
}

func TestExtractPassesUnknownSymptomsThrough(t *testing.T) {
	client := &llmMock{responses: []string{`{"symptoms": ["left ear itching"]}`}}
	extractor := NewExtractor(client, types.DefaultTerminology())

	patient, err := extractor.Extract(context.Background(), testIntake())
	require.NoError(t, err)
	require.Equal(t, []string{"left ear itching"}, patient.Symptoms)
}

func TestExtractRejectsNonJSONOutput(t *testing.T) {
	client := &llmMock{responses: []string{"I cannot help with that."}}
	extractor := NewExtractor(client, types.DefaultTerminology())

	_, err := extractor.Extract(context.Background(), testIntake())
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "StructuredPatient", schemaErr.Schema)
}

func TestExtractWrapsModelFailure(t *testing.T) {
	client := &llmMock{err: errors.New("rate limited")}
	extractor := NewExtractor(client, types.DefaultTerminology())

	_, err := extractor.Extract(context.Background(), testIntake())
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}
