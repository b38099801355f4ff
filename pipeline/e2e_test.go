package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinsight.com/cra/records"
	"clinsight.com/cra/stages"
	"clinsight.com/cra/types"
)

// scriptedLLM returns one canned response per generation call, in order.
type scriptedLLM struct {
	t         *testing.T
	responses []string
	calls     int
}

func (m *scriptedLLM) Complete(_ context.Context, _ string, _ string, _ string) (string, error) {
	require.Less(m.t, m.calls, len(m.responses), "unexpected extra generation call")
	response := m.responses[m.calls]
	m.calls++
	return response, nil
}

type recordedHistory struct {
	entries map[string][]records.HistoryEntry
}

func (m *recordedHistory) ListHistory(nationalID string) ([]records.HistoryEntry, error) {
	entries, ok := m.entries[nationalID]
	if !ok {
		return nil, records.ErrNotFound
	}
	return entries, nil
}

func buildStagesOrchestrator(client *scriptedLLM, history stages.HistoryTool, sink *sinkMock) *Orchestrator {
	terms := types.DefaultTerminology()
	return New(
		Config{StageTimeoutSeconds: 5, StageRetryMax: 3, GenerationRetryMax: 2},
		Params{
			Extractor:  stages.NewExtractor(client, terms),
			Aggregator: stages.NewAggregator(client, history, terms),
			Evaluator:  stages.NewEvaluator(client),
			Renderer:   stages.NewRenderer(client),
			Sink:       sink,
		},
	)
}

func TestPipelineEndToEnd(t *testing.T) {
	client := &scriptedLLM{t: t, responses: []string{
		// extract
		`{"name": "Jane Doe", "age": 34, "gender": "female",
		  "symptoms": ["persistent cough", "mild fever"]}`,
		// history
		`{"patient_info": {"name": "Jane Doe", "age": 34, "gender": "female"},
		  "medical_history": [{"date": "2022-01-10", "description": "Diagnosed with mild asthma"}],
		  "chronic_conditions": [],
		  "allergies": []}`,
		// evaluate
		`{"patient_summary": {
		    "medical_history_summary": ["Asthma diagnosed in 2022"]
		  },
		  "clinical_assessment": {
		    "symptom_analysis": "Persistent cough with low-grade fever in a patient with asthma",
		    "potential_diagnoses": ["Possible asthma exacerbation"],
		    "risk_factors": ["Asthma"],
		    "severity_assessment": "moderate",
		    "urgency_level": "routine"
		  },
		  "recommendations": {
		    "immediate_actions": ["Monitor breathing"],
		    "follow_up_care": ["See GP within a week"],
		    "additional_tests": ["Spirometry"],
		    "precautions": ["Avoid cold air"]
		  }}`,
		// render
		`<html><head><style>body{font-family:sans-serif}</style></head><body>
		 <h1>Clinical Report</h1>
		 <li>Chronic cough</li><li>Low-grade fever</li>
		 <li>Asthma diagnosed in 2022</li>
		 <li>Possible asthma exacerbation</li><li>Asthma</li>
		 <li>Monitor breathing</li><li>See GP within a week</li>
		 <li>Spirometry</li><li>Avoid cold air</li>
		 </body></html>`,
	}}
	history := &recordedHistory{entries: map[string][]records.HistoryEntry{
		"X1": {{Description: "Diagnosed with mild asthma", Timestamp: time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)}},
	}}
	sink := &sinkMock{}

	request := Request{
		RID: "run-e2e",
		Patient: types.PatientInput{
			PatientID:   "X1",
			Name:        "Jane Doe",
			Age:         34,
			Gender:      types.GenderFemale,
			RawSymptoms: "persistent cough, mild fever",
		},
	}
	result := buildStagesOrchestrator(client, history, sink).Run(context.Background(), request)

	require.Equal(t, StateCompleted, result.State)
	require.Nil(t, result.Failure)
	require.Equal(t, 4, client.calls)

	// Terminology pinned the colloquial phrasing to standardized terms.
	require.Equal(t, []string{"Chronic cough", "Low-grade fever"}, result.Patient.Symptoms)
	require.Contains(t, result.Profile.ChronicConditions, "Asthma")
	require.Equal(t, "Jane Doe", result.Assessment.PatientSummary.Name)
	require.Contains(t, result.Report, "Possible asthma exacerbation")
	require.Len(t, sink.keys, 4)
}

func TestPipelineUnknownPatientAbortsAtHistory(t *testing.T) {
	client := &scriptedLLM{t: t, responses: []string{
		`{"name": "Jane Doe", "age": 34, "gender": "female",
		  "symptoms": ["persistent cough", "mild fever"]}`,
	}}
	history := &recordedHistory{entries: map[string][]records.HistoryEntry{}}
	sink := &sinkMock{}

	request := Request{
		RID: "run-unknown",
		Patient: types.PatientInput{
			PatientID:   "X9",
			Name:        "Jane Doe",
			Age:         34,
			Gender:      types.GenderFemale,
			RawSymptoms: "persistent cough, mild fever",
		},
	}
	result := buildStagesOrchestrator(client, history, sink).Run(context.Background(), request)

	require.Equal(t, StateAborted, result.State)
	require.Equal(t, StageHistory, result.Failure.Stage)
	require.Equal(t, FailureTool, result.Failure.Kind)
	require.Equal(t, 1, result.Failure.Attempts)
	require.Contains(t, result.Failure.Reason, "not registered")
	// Only the extract artifact was stored before the abort.
	require.Len(t, sink.keys, 1)
	require.Empty(t, result.Report)
}
