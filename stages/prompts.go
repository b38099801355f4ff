package stages

import (
	"fmt"

	"clinsight.com/cra/types"
)

// System roles and task instructions for the four generation calls. The
// schemas embedded here must stay in sync with the types package; every
// response is validated against them before the next stage may start.

const extractorRole = "You are a specialized medical data extraction assistant. " +
	"You take raw patient information (name, age, gender, symptoms) and convert it into structured, " +
	"clean JSON with standardized medical terminology. You are precise and only output valid JSON objects."

const historyRole = "You are a medical history specialist. You combine structured patient data with " +
	"historical medical records into comprehensive clinical profiles covering chronic conditions, " +
	"allergies and previous treatments. You only output valid JSON objects."

const evaluatorRole = "You are a clinical evaluator working alongside a doctor. You read a merged clinical " +
	"profile and produce a structured, non-diagnostic summary: possible conditions, risk levels and " +
	"suggestions. You never make final diagnoses. You only output valid JSON objects."

const rendererRole = "You are a medical documentation assistant. You convert structured clinical summaries " +
	"into clear, readable, styled HTML reports for doctors."

func extractionInstructions(in types.PatientInput) string {
	return fmt.Sprintf(`PATIENT DATA EXTRACTION TASK

PATIENT INFO:
- Name: %s
- Age: %d
- Gender: %s
- Symptoms: %q

YOUR TASK:
1. Copy name, age and gender exactly as given.
2. Rewrite each reported symptom as a clean, medically phrased term.
3. Return a single JSON object with this structure:

{
  "name": %q,
  "age": %d,
  "gender": %q,
  "symptoms": ["Symptom 1", "Symptom 2"]
}

RULES:
- Only output a single JSON object. No explanation, no markdown, no comments.
- The symptoms list must not be empty.`,
		in.Name, in.Age, in.Gender, in.RawSymptoms,
		in.Name, in.Age, in.Gender)
}

func historyInstructions(nationalID string, historyText string) string {
	return fmt.Sprintf(`MEDICAL HISTORY PROCESSING TASK

The input context holds the structured patient record from the previous stage.
The medical history below was retrieved from the record store for national ID %q:

%s

YOUR TASK:
1. Copy name, age, gender and symptoms from the input context verbatim.
2. Parse the history text into discrete events with dates.
3. Identify chronic conditions (e.g. high blood pressure -> Hypertension) and allergies.
4. Return a single JSON object with this structure:

{
  "patient_info": {"name": "...", "age": 0, "gender": "...", "current_symptoms": ["..."]},
  "medical_history": [{"date": "YYYY-MM-DD", "description": "event details"}],
  "chronic_conditions": ["..."],
  "allergies": ["..."]
}

RULES:
- If no medical history is found, use empty lists. Never omit a field.
- Order medical_history most recent first.
- Only output the final JSON object. No explanation, no markdown.`, nationalID, historyText)
}

const evaluationInstructions = `SYMPTOM EVALUATION TASK

The input context holds the merged clinical profile: patient info, medical
history events, chronic conditions and allergies.

YOUR TASK:
1. Analyze the current symptoms in light of the history.
2. Identify possible (never confirmed) diagnoses.
3. Assess severity and urgency.
4. Recommend follow-up actions, tests and precautions. Precautions must take
   the listed allergies into account; never suggest a test or medication that
   conflicts with a logged allergy.

Return ONLY this JSON structure:

{
  "patient_summary": {
    "name": "...", "age": 0, "gender": "...",
    "current_symptoms": ["..."],
    "medical_history_summary": ["one sentence per key historical event"]
  },
  "clinical_assessment": {
    "symptom_analysis": "...",
    "potential_diagnoses": ["..."],
    "risk_factors": ["..."],
    "severity_assessment": "low | moderate | high",
    "urgency_level": "routine | urgent | emergent"
  },
  "recommendations": {
    "immediate_actions": ["..."],
    "follow_up_care": ["..."],
    "additional_tests": ["..."],
    "precautions": ["..."]
  }
}

RULES:
- Do NOT provide confirmed diagnoses.
- severity_assessment and urgency_level must use exactly one of the listed values.
- Only output the JSON object. No markdown, no extra explanation.`

const renderInstructions = `REPORT GENERATION TASK

The input context holds a complete clinical assessment in JSON.

YOUR TASK:
1. Convert it into a complete, styled, self-contained HTML document.
2. Include three sections: Patient Summary, Clinical Assessment, Recommendations.
3. Include every list entry from the input. Do not summarize or omit anything.
4. Use HTML headings, bold labels and paragraphs; style inline or in a <style> tag.
5. Do not reference external stylesheets or scripts.

Output ONLY the final HTML document.`
